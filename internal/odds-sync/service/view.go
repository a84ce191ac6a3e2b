package service

// ViewStatus é o estado de carregamento exposto à UI
type ViewStatus string

const (
	ViewIdle    ViewStatus = "idle"
	ViewLoading ViewStatus = "loading"
	ViewLoaded  ViewStatus = "loaded"
	ViewEmpty   ViewStatus = "empty"
	ViewError   ViewStatus = "error"
)

// ViewState: após um carregamento a UI está sempre em loaded, empty ou error
type ViewState struct {
	Status  ViewStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

func viewFor(count int) ViewState {
	if count == 0 {
		return ViewState{Status: ViewEmpty}
	}
	return ViewState{Status: ViewLoaded}
}
