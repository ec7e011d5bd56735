package config

import "time"

// Step actions understood by the orchestrator.
const (
	ActionNavigate  = "navigate"
	ActionClick     = "click"
	ActionClickText = "click_text" // click the first Selector match whose text matches Value
	ActionFill      = "fill"
	ActionWait      = "wait"
)

// DefaultWorkflow is the distributor portal flow: open the client search, filter by ID,
// open the client card on the product details tab, produce the two tax reports, record the
// saver products with their liens and loans, then download the client PDF.
func DefaultWorkflow() Workflow {
	showPopup := Step{Action: ActionClick, Selector: "#btnShowPopup"}
	create := Step{Action: ActionClick, Selector: "#btnCreateTaxesPdf"}

	return Workflow{
		StableURL: DefaultStableURL,
		AfterLogin: []Step{
			{Action: ActionClick, Selector: "#homePageItem1"},
			{Action: ActionClick, Selector: "#actionview"},
		},
		Prepare: []Step{
			{Action: ActionClick, Selector: `[name="filterBoxFilter"]`},
			{Action: ActionFill, Selector: `[ng-model="IdentificationNumber"]`, Value: "{identifier}"},
			{Action: ActionClick, Selector: `div.sw-filter input[type="button"]`},
			{Action: ActionClick, Selector: "td.table-cell.showDetailsCommand.k-command-cell img.watch-img"},
			{Action: ActionClick, Selector: "#RadioId21", Timeout: 100 * time.Second},
			{Action: ActionClickText, Selector: `li[role="tab"]`, Value: "פירוט מוצרים"},
			{Action: ActionWait, Selector: "#btnShowPopup"},
		},
		Triggers: []Trigger{
			{
				Name: "pitzuim",
				Steps: []Step{
					showPopup,
					{Action: ActionClick, Selector: "#checkYtrotPitzuim"},
					create,
				},
			},
			{
				Name: "compensation",
				Steps: []Step{
					showPopup,
					{Action: ActionClick, Selector: `[ng-model="compensationReportChecked"]`},
					create,
				},
			},
			{
				Name: "products",
				Records: []Section{
					{
						Title: "מוצרים",
						Steps: []Step{{Action: ActionWait, Selector: ".SaverMyProducts"}},
						Rows:  `.SaverMyProducts div[ng-repeat="item in GroupedData"]`,
						Label: "div.productName",
						Value: "div.details-box",
					},
					{
						Title: "שעבודים ועיקולים",
						Steps: []Step{
							{Action: ActionClick, Selector: `a[ng-click="PolicyClicked(details)"]`, Mode: "script"},
							{Action: ActionClickText, Selector: "li.k-item span.k-link", Value: "שעבודים ועיקולים"},
							{Action: ActionWait, Selector: "#PolicyConfiscationContent div.row-fluid", Timeout: 60 * time.Second},
						},
						Rows:  "#PolicyConfiscationContent div.row-fluid",
						Label: "div.boldStyle label",
						Value: "div:not(.boldStyle)",
					},
					{
						Title: "הלוואות",
						Steps: []Step{
							{Action: ActionClickText, Selector: "li.k-item span.k-link", Value: "הלוואות"},
							{Action: ActionWait, Selector: "table.PolicyLoanGrid", Timeout: 60 * time.Second},
						},
						Rows: "table.PolicyLoanGrid tbody tr",
					},
				},
			},
			{
				Name: "pdf",
				Steps: []Step{
					{Action: ActionClick, Selector: `input[type="image"][name="pdf"]`, Mode: "script"},
				},
			},
		},
	}
}
