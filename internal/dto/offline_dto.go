package dto

// OrdenOfflineResponse is one queued order as shown on the terminal.
type OrdenOfflineResponse struct {
	LocalID        string  `json:"local_id"`
	NumeroTemporal int     `json:"numero_temporal"`
	Estado         string  `json:"estado"`
	ServidorID     *string `json:"servidor_id"`
	Folio          *int    `json:"folio"`
	Intentos       int     `json:"intentos"`
	UltimoError    *string `json:"ultimo_error"`
	Rechazada      bool    `json:"rechazada"`
	CreatedAt      string  `json:"created_at"`
}

type ColaOfflineResponse struct {
	Pendientes int64                  `json:"pendientes"`
	Data       []OrdenOfflineResponse `json:"data"`
}

type EstadoTerminalResponse struct {
	SucursalID    int   `json:"sucursal_id"`
	EnLinea       bool  `json:"en_linea"`
	Sincronizando bool  `json:"sincronizando"`
	Pendientes    int64 `json:"pendientes"`
}
