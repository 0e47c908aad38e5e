package owid

// Status es el resultado de una verificación de OWID.
//
// Máquina de estados:
//
//	NotStarted -> Processing -> {Valid, NotValid, SignerNotFound, KeyNotFound, Exception}
//
// Valid/NotValid son resultados limpios; un mismatch de firma NUNCA es
// excepción. Exception se alcanza sólo cuando un error fatal se propaga.
type Status int

const (
	StatusNotStarted Status = iota
	StatusProcessing
	StatusValid
	StatusNotValid
	StatusSignerNotFound
	StatusKeyNotFound
	StatusException
)

// String devuelve el nombre estable del estado (usado en la API HTTP y en logs).
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusProcessing:
		return "processing"
	case StatusValid:
		return "valid"
	case StatusNotValid:
		return "not_valid"
	case StatusSignerNotFound:
		return "signer_not_found"
	case StatusKeyNotFound:
		return "key_not_found"
	case StatusException:
		return "exception"
	default:
		return "unknown"
	}
}
