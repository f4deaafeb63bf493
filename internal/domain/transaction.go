package domain

import "time"

type TxStatus string

const (
	StatusPending   TxStatus = "PENDING"
	StatusDelivered TxStatus = "DELIVERED"
	StatusFailed    TxStatus = "FAILED"
	StatusUsed      TxStatus = "USED"
)

// Transaction is one row of the voucher ledger. Rows are created PENDING
// when a driver's coupon request is relayed to the validating entity and
// mutated to DELIVERED/FAILED when the entity answers. Rows are never
// deleted; the table is the audit trail.
type Transaction struct {
	ID          int64      `db:"id" json:"id"`
	DriverPhone string     `db:"driver_phone" json:"driverPhone"`
	Entidad     string     `db:"entidad" json:"entidad"`
	AgentePhone string     `db:"agente_phone" json:"agentePhone"`
	Cupon       string     `db:"cupon" json:"cupon"`
	DNI         string     `db:"dni" json:"dni"`
	Fecha       time.Time  `db:"fecha" json:"fecha"`
	Monto       *float64   `db:"monto" json:"monto,omitempty"`
	Estado      TxStatus   `db:"estado" json:"estado"`
	Respuesta   *string    `db:"respuesta" json:"respuesta,omitempty"`
	SN          *string    `db:"sn" json:"sn,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}

type TxStats struct {
	Pending   int64 `json:"pending"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Used      int64 `json:"used"`
}

// AgentRecord is the directory service's view of a phone number: the agent
// itself plus its place in the dealer hierarchy. It is externally sourced
// and never persisted here.
type AgentRecord struct {
	Code        string `json:"Code"`
	AgentPhone  string `json:"U_LLG_AGENT_PHONE"`
	AgentIMEI   string `json:"U_LLG_AGENT_IMEI"`
	AgentName   string `json:"U_LLG_AGENT_NAME"`
	DealerPhone string `json:"U_LLG_DEALER_PHONE"`
	Document    string `json:"U_LLG_AGENT_DOCUMENT"`
	ID          string `json:"U_LLG_ID"`
	ParentID    string `json:"U_LLG_ID_PARENT"`
	Approve     string `json:"U_LLG_APPROVE"`
}

// AgentResponse is the envelope returned by both directory endpoints.
type AgentResponse struct {
	Value []AgentRecord `json:"value"`
}

// SyncRecord is the finalized validation record delivered to the system of
// record (table @ALLG_FISE_SMS on the SAP side).
type SyncRecord struct {
	FiseNumero  string   `json:"U_fise_numero"`
	UsrNumero   string   `json:"U_usr_numero"`
	UsrDNI      string   `json:"U_usr_dni"`
	FiseCodigo  string   `json:"U_fise_codigo"`
	Importe     *float64 `json:"U_importe"`
	UsrChofer   string   `json:"U_usr_chofer"`
	Descripcion string   `json:"U_descripcion"`
	FiseSN      *string  `json:"U_LLG_FISE_SN"`
}
