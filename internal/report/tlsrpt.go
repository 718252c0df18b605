package report

// TLSReport is the JSON shape of an SMTP TLS report (RFC 8460).
//
// Date times are kept as strings: some senders don't follow RFC 3339, and reports are stored as received anyway.
type TLSReport struct {
	OrganizationName string       `json:"organization-name"`
	DateRange        TLSDateRange `json:"date-range"`
	ContactInfo      string       `json:"contact-info"`
	ReportID         string       `json:"report-id"`
	Policies         []TLSResult  `json:"policies,omitempty"`
}

// TLSDateRange is the period covered by a TLS report.
type TLSDateRange struct {
	Start string `json:"start-datetime"`
	End   string `json:"end-datetime"`
}

// TLSResult holds the results for one policy.
type TLSResult struct {
	Policy         TLSPolicy           `json:"policy"`
	Summary        TLSSummary          `json:"summary"`
	FailureDetails []TLSFailureDetails `json:"failure-details,omitempty"`
}

// TLSPolicy identifies the policy the results apply to.
type TLSPolicy struct {
	Type   string   `json:"policy-type"`
	String []string `json:"policy-string,omitempty"`
	Domain string   `json:"policy-domain"`
	MXHost []string `json:"mx-host,omitempty"`
}

// TLSSummary counts sessions for a policy.
type TLSSummary struct {
	TotalSuccessfulSessionCount int64 `json:"total-successful-session-count"`
	TotalFailureSessionCount    int64 `json:"total-failure-session-count"`
}

// TLSFailureDetails describes one kind of failed session.
type TLSFailureDetails struct {
	ResultType            string `json:"result-type"`
	SendingMTAIP          string `json:"sending-mta-ip,omitempty"`
	ReceivingMXHostname   string `json:"receiving-mx-hostname,omitempty"`
	ReceivingMXHelo       string `json:"receiving-mx-helo,omitempty"`
	ReceivingIP           string `json:"receiving-ip,omitempty"`
	FailedSessionCount    int64  `json:"failed-session-count"`
	AdditionalInformation string `json:"additional-information,omitempty"`
	FailureReasonCode     string `json:"failure-reason-code,omitempty"`
}
