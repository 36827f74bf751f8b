package schema

// SessionTeamSwitchAuditTable represents the 'session.teamswitchaudit' table
type SessionTeamSwitchAuditTable struct {
	Table     string
	ID        string
	UserID    string
	Subject   string
	FromTeam  string
	ToTeam    string
	Outcome   string
	Error     string
	CreatedAt string
}

var SessionTeamSwitchAudit = SessionTeamSwitchAuditTable{
	Table:     "session.teamswitchaudit",
	ID:        "id",
	UserID:    "userid",
	Subject:   "subject",
	FromTeam:  "fromteam",
	ToTeam:    "toteam",
	Outcome:   "outcome",
	Error:     "error",
	CreatedAt: "createdat",
}
