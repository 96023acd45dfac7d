package entities

type ReservationEmailData struct {
	ReservationID      string
	CourtName          string
	StartTimeFormatted string
	EndTimeFormatted   string
	TotalPrice         string
	CurrentYear        int
}

type IncidentAlertData struct {
	IncidentID    string
	Provider      string
	CorrelationID string
	UserID        string
	CourtID       string
	StartTime     string
	EndTime       string
	Amount        string
	Reason        string
}
