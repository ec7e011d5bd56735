package notifier

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"
)

// Mailer sends alerts through the system's msmtp binary. It assumes msmtp is configured
// on the host.
type Mailer struct {
	To string
	// Binary defaults to "msmtp".
	Binary string
}

func (m *Mailer) binary() string {
	if m.Binary == "" {
		return "msmtp"
	}
	return m.Binary
}

// Message renders the mail handed to msmtp on stdin.
func Message(to, subject, body string) string {
	return fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s", to, subject, body)
}

// SendAlert is a no-op when no recipient is configured.
func (m *Mailer) SendAlert(subject, body string) error {
	if m.To == "" {
		logger.Warn("%s", i18n.T("notifier_skipped"))
		return nil
	}

	bin, err := exec.LookPath(m.binary())
	if err != nil {
		return errors.New(i18n.T("notifier_no_binary"))
	}

	cmd := exec.Command(bin, m.To)
	cmd.Stdin = strings.NewReader(Message(m.To, subject, body))

	logger.Info(i18n.T("notifier_sending"), m.To)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf(i18n.T("notifier_fail"), err, strings.TrimSpace(string(output)))
	}
	return nil
}
