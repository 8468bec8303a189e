package cast

var (
	// Known payload headers.
	ConnectHeader   = PayloadHeader{Type: "CONNECT"}
	CloseHeader     = PayloadHeader{Type: "CLOSE"}
	GetStatusHeader = PayloadHeader{Type: "GET_STATUS"}
	PingHeader      = PayloadHeader{Type: "PING"}
	PongHeader      = PayloadHeader{Type: "PONG"}   // Response to PING payload
	LaunchHeader    = PayloadHeader{Type: "LAUNCH"} // Launches a receiver app
	StopHeader      = PayloadHeader{Type: "STOP"}   // Stops the running app
)

// Payload is any outbound message that can carry a request id for
// request/response correlation.
type Payload interface {
	SetRequestId(id int)
}

type PayloadHeader struct {
	Type      string `json:"type"`
	RequestId int    `json:"requestId,omitempty"`
}

func (p *PayloadHeader) SetRequestId(id int) {
	p.RequestId = id
}

type LaunchRequest struct {
	PayloadHeader
	AppId string `json:"appId"`
}

type Volume struct {
	Level float32 `json:"level"`
	Muted bool    `json:"muted"`
}

type Application struct {
	AppId        string `json:"appId"`
	DisplayName  string `json:"displayName"`
	IsIdleScreen bool   `json:"isIdleScreen"`
	SessionId    string `json:"sessionId"`
	StatusText   string `json:"statusText"`
	TransportId  string `json:"transportId"`
}

type ReceiverStatusResponse struct {
	PayloadHeader
	Status struct {
		Applications []Application `json:"applications"`
		Volume       Volume        `json:"volume"`
	} `json:"status"`
}

type LaunchErrorResponse struct {
	PayloadHeader
	Reason string `json:"reason"`
}
