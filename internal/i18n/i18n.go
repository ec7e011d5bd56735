package i18n

import (
	"os"
	"strings"
)

var CurrentLang = "en"

// Key -> language -> message.
var messages = map[string]map[string]string{
	"header_title": {
		"en": "   REPORT HARVESTER CONFIGURATION",
		"he": "   הגדרות מוריד הדוחות",
	},
	"intro_1": {
		"en": "This tool logs into the distributor portal and downloads client reports.",
		"he": "הכלי מתחבר לפורטל המפיצים ומוריד דוחות לקוח.",
	},
	"intro_2": {
		"en": "The one-time code is requested at run time and never stored.",
		"he": "קוד האימות החד-פעמי נדרש בזמן הריצה ואינו נשמר.",
	},
	"prompt_url": {
		"en": "Portal login URL",
		"he": "כתובת כניסה לפורטל",
	},
	"prompt_username": {
		"en": "Username",
		"he": "שם משתמש",
	},
	"prompt_download_dir": {
		"en": "Browser download directory",
		"he": "תיקיית ההורדות של הדפדפן",
	},
	"prompt_output_root": {
		"en": "Output directory for client folders",
		"he": "תיקיית יעד לתיקיות הלקוחות",
	},
	"success_msg": {
		"en": "\n✅ Configuration saved to: %s",
		"he": "\n✅ ההגדרות נשמרו ב: %s",
	},
	"password_hint": {
		"en": "🔑 The password is not stored here. Put it in a .env file as RH_AUTH_PASSWORD=...",
		"he": "🔑 הסיסמה אינה נשמרת כאן. יש לשמור אותה בקובץ .env בתור RH_AUTH_PASSWORD=...",
	},
	"error_mkdir": {
		"en": "Error creating config directory: %s",
		"he": "שגיאה ביצירת תיקיית ההגדרות: %s",
	},
	"error_save": {
		"en": "Error saving configuration: %s",
		"he": "שגיאה בשמירת ההגדרות: %s",
	},
	"config_missing": {
		"en": "ℹ️  No config file found, using defaults and environment.",
		"he": "ℹ️  לא נמצא קובץ הגדרות, משתמש בברירות מחדל ובמשתני סביבה.",
	},
	"config_read_error": {
		"en": "Error reading config file: %v",
		"he": "שגיאה בקריאת קובץ ההגדרות: %v",
	},
	"config_decode_error": {
		"en": "Error decoding configuration: %v",
		"he": "שגיאה בפענוח ההגדרות: %v",
	},
	"invalid_url": {
		"en": "Invalid URL: %s (must start with http:// or https://)",
		"he": "כתובת לא תקינה: %s (חייבת להתחיל ב-http:// או https://)",
	},
	"browser_system": {
		"en": "🌐 Using system browser at: %s",
		"he": "🌐 משתמש בדפדפן המערכת: %s",
	},
	"browser_download_fail": {
		"en": "⚠️  Could not start the system browser, downloading a bundled Chromium...",
		"he": "⚠️  לא ניתן להפעיל את דפדפן המערכת, מוריד Chromium...",
	},
	"browser_fallback_default": {
		"en": "⚠️  Chromium unavailable (%v), opening the default browser instead.",
		"he": "⚠️  Chromium לא זמין (%v), פותח את דפדפן ברירת המחדל.",
	},
	"browser_opened": {
		"en": "✅ Browser opened at: %s",
		"he": "✅ הדפדפן נפתח בכתובת: %s",
	},
	"browser_left_open": {
		"en": "🌐 Browser will remain open for manual interaction.",
		"he": "🌐 הדפדפן יישאר פתוח לעבודה ידנית.",
	},
	"browser_close_prompt": {
		"en": "Press Enter to close the browser",
		"he": "הקש Enter לסגירת הדפדפן",
	},
	"browser_wait_window": {
		"en": "No input available: close the browser window or press Ctrl+C to finish.",
		"he": "אין קלט זמין: סגור את חלון הדפדפן או הקש Ctrl+C לסיום.",
	},
	"browser_closed": {
		"en": "👋 Browser closed.",
		"he": "👋 הדפדפן נסגר.",
	},
	"run_start": {
		"en": "🤖 Starting web automation (run %s)...",
		"he": "🤖 מתחיל אוטומציה (ריצה %s)...",
	},
	"run_done": {
		"en": "✅ Automation finished: %d filed, %d failed.",
		"he": "✅ האוטומציה הסתיימה: %d נשמרו, %d נכשלו.",
	},
	"auth_filling": {
		"en": "📝 Filling login form...",
		"he": "📝 ממלא טופס כניסה...",
	},
	"auth_form_missing": {
		"en": "Login form not found on %s. Did the portal change?",
		"he": "טופס הכניסה לא נמצא ב-%s. האם הפורטל השתנה?",
	},
	"code_prompt_label": {
		"en": "Please enter the Code Token",
		"he": "נא להזין את קוד האימות",
	},
	"code_received": {
		"en": "✅ Code Token received.",
		"he": "✅ קוד האימות התקבל.",
	},
	"submitting": {
		"en": "🔘 Submitting login...",
		"he": "🔘 שולח את טופס הכניסה...",
	},
	"submitted": {
		"en": "✅ Logged in.",
		"he": "✅ הכניסה הצליחה.",
	},
	"ids_prompt_label": {
		"en": "Client IDs (separated by commas or spaces)",
		"he": "מספרי ת\"ז (מופרדים בפסיקים או ברווחים)",
	},
	"ids_received": {
		"en": "📋 %d identifiers to process.",
		"he": "📋 %d מזהים לעיבוד.",
	},
	"ids_empty": {
		"en": "No identifiers supplied, nothing to do.",
		"he": "לא סופקו מזהים, אין מה לעבד.",
	},
	"id_processing": {
		"en": "\n🔄 Processing item %d/%d: %s",
		"he": "\n🔄 מעבד פריט %d/%d: %s",
	},
	"id_filed": {
		"en": "✅ [%s] %s saved to: %s",
		"he": "✅ [%s] %s נשמר ב: %s",
	},
	"id_failed": {
		"en": "[%s] failed: %v",
		"he": "[%s] נכשל: %v",
	},
	"watch_ignored": {
		"en": "Other new files present but not claimed: %s",
		"he": "קבצים חדשים נוספים נמצאו ולא נלקחו: %s",
	},
	"user_cancelled": {
		"en": "🛑 Cancelled by the operator.",
		"he": "🛑 בוטל על ידי המשתמש.",
	},
	"notifier_skipped": {
		"en": "Email alert skipped: email_alert_to is not configured.",
		"he": "התראת דוא\"ל דולגה: email_alert_to לא הוגדר.",
	},
	"notifier_no_binary": {
		"en": "msmtp binary not found in PATH",
		"he": "הקובץ msmtp לא נמצא ב-PATH",
	},
	"notifier_sending": {
		"en": "📧 Sending alert to %s...",
		"he": "📧 שולח התראה אל %s...",
	},
	"notifier_fail": {
		"en": "msmtp failed: %v (%s)",
		"he": "msmtp נכשל: %v (%s)",
	},
	"alert_subject": {
		"en": "report-harvester: %d of %d identifiers failed",
		"he": "report-harvester: %d מתוך %d מזהים נכשלו",
	},
}

// Init picks the language from LANG.
func Init() {
	langEnv := os.Getenv("LANG")
	if strings.HasPrefix(langEnv, "he") || strings.HasPrefix(langEnv, "iw") {
		CurrentLang = "he"
	} else {
		CurrentLang = "en"
	}
}

// T translates a key into the current language, falling back to English and then to the key.
func T(key string) string {
	if translations, ok := messages[key]; ok {
		if val, ok := translations[CurrentLang]; ok {
			return val
		}
		return translations["en"]
	}
	return key
}
