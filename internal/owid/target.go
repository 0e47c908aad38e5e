package owid

import "github.com/SWAN-community/owid/internal/codec"

// Target es el contrato que implementa todo payload firmable: aportar sus
// bytes canónicos al mensaje que se firma. El target elige su propio
// framing; el OWID sólo concatena.
//
// Un Target no es dueño de su OWID: el OWID guarda una referencia no
// propietaria al target.
type Target interface {
	AddOwidData(w *codec.Writer) error
}

// StringTarget es el target de referencia: un string escrito con
// terminador nulo (el mismo framing que el dominio del OWID).
type StringTarget struct {
	Value string
}

// AddOwidData implementa Target.
func (t *StringTarget) AddOwidData(w *codec.Writer) error {
	return w.WriteString(t.Value)
}

// ByteArrayTarget enmarca bytes arbitrarios con prefijo de longitud uint32.
type ByteArrayTarget struct {
	Value []byte
}

// AddOwidData implementa Target.
func (t *ByteArrayTarget) AddOwidData(w *codec.Writer) error {
	return w.WriteByteArray(t.Value)
}
