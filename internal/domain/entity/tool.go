package entity

type ToolName string

const (
	ToolNavigateWeb   ToolName = "navigate_web"
	ToolClickElement  ToolName = "click_element"
	ToolFillField     ToolName = "fill_field"
	ToolCaptureScreen ToolName = "capture_screen"
	ToolExtractLinks  ToolName = "extract_links"
	ToolGetHTML       ToolName = "get_html"

	ToolPageMarkdown ToolName = "page_markdown"
	ToolExtractData  ToolName = "analyze_and_extract_data"
	ToolSaveResults  ToolName = "save_results"
	ToolDone         ToolName = "done"
)

func (t ToolName) String() string {
	return string(t)
}

// ToolKind tags a tool by the capability it needs. Browser tools force
// lazy session establishment before the first invocation; pure tools run
// on local data only.
type ToolKind string

const (
	KindBrowser ToolKind = "browser"
	KindPure    ToolKind = "pure"
)

type ToolResultStatus string

const (
	ResultOK    ToolResultStatus = "ok"
	ResultError ToolResultStatus = "error"
)

// ToolResult is the uniform outcome of one dispatch. Faults are data, not
// exceptions: an error result is fed back to the oracle so it can adapt.
type ToolResult struct {
	Status  ToolResultStatus
	Payload string

	// Bounded is set once the content budget manager has admitted the
	// result. Admitting twice must not truncate twice.
	Bounded bool
}

func OKResult(payload string) ToolResult {
	return ToolResult{Status: ResultOK, Payload: payload}
}

func ErrorResult(msg string) ToolResult {
	return ToolResult{Status: ResultError, Payload: "Error: " + msg}
}

func (r ToolResult) IsError() bool {
	return r.Status == ResultError
}
