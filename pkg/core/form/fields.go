// Package form models the credit-application form the voice agent fills in:
// seven named slots that are either unset or hold a non-empty string.
package form

import "fmt"

// Wire keys for the seven slots. These are the JSON property names used on
// the dialogue schema and the client protocol.
const (
	KeyNombreCompleto = "nombreCompleto"
	KeyDireccion      = "direccion"
	KeyMontoCredito   = "montoCredito"
	KeyIngresoMensual = "ingresoMensual"
	KeyGastoMensual   = "gastoMensual"
	KeyNumeroCelular  = "numeroCelular"
	KeyCedula         = "cedula"
)

// Keys lists the slot keys in form order.
var Keys = []string{
	KeyNombreCompleto,
	KeyDireccion,
	KeyMontoCredito,
	KeyIngresoMensual,
	KeyGastoMensual,
	KeyNumeroCelular,
	KeyCedula,
}

// Labels maps slot keys to the Spanish labels used in prompts and logs.
var Labels = map[string]string{
	KeyNombreCompleto: "Nombre completo",
	KeyDireccion:      "Dirección de residencia",
	KeyMontoCredito:   "Monto del crédito solicitado",
	KeyIngresoMensual: "Ingreso mensual",
	KeyGastoMensual:   "Gasto mensual",
	KeyNumeroCelular:  "Número de celular",
	KeyCedula:         "Cédula de ciudadanía",
}

// Fields holds the seven application slots. A nil pointer means unset; a
// non-nil pointer always holds a non-empty string.
type Fields struct {
	NombreCompleto *string `json:"nombreCompleto"`
	Direccion      *string `json:"direccion"`
	MontoCredito   *string `json:"montoCredito"`
	IngresoMensual *string `json:"ingresoMensual"`
	GastoMensual   *string `json:"gastoMensual"`
	NumeroCelular  *string `json:"numeroCelular"`
	Cedula         *string `json:"cedula"`
}

func (f *Fields) slot(key string) **string {
	switch key {
	case KeyNombreCompleto:
		return &f.NombreCompleto
	case KeyDireccion:
		return &f.Direccion
	case KeyMontoCredito:
		return &f.MontoCredito
	case KeyIngresoMensual:
		return &f.IngresoMensual
	case KeyGastoMensual:
		return &f.GastoMensual
	case KeyNumeroCelular:
		return &f.NumeroCelular
	case KeyCedula:
		return &f.Cedula
	default:
		return nil
	}
}

// Get returns the value for a slot key and whether it is set.
func (f *Fields) Get(key string) (string, bool) {
	p := f.slot(key)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Set stores a value for a slot key. An empty value is rejected: slots are
// overwritten by corrections, never cleared.
func (f *Fields) Set(key, value string) error {
	p := f.slot(key)
	if p == nil {
		return fmt.Errorf("unknown field %q", key)
	}
	if value == "" {
		return fmt.Errorf("field %q cannot be set to empty", key)
	}
	v := value
	*p = &v
	return nil
}

// Merge copies every set slot from other into f. Unset slots in other leave
// the existing value untouched; a set slot always overwrites (the correction
// path). Empty strings in other are ignored.
func (f *Fields) Merge(other Fields) {
	for _, key := range Keys {
		src := other.slot(key)
		if *src == nil || **src == "" {
			continue
		}
		v := **src
		dst := f.slot(key)
		*dst = &v
	}
}

// Complete reports whether all seven slots are set.
func (f *Fields) Complete() bool {
	for _, key := range Keys {
		if _, ok := f.Get(key); !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (f *Fields) Clone() Fields {
	var out Fields
	out.Merge(*f)
	return out
}

// FilledCount returns how many slots are set.
func (f *Fields) FilledCount() int {
	n := 0
	for _, key := range Keys {
		if _, ok := f.Get(key); ok {
			n++
		}
	}
	return n
}

// FilledLines returns "Label: value" lines for set slots, in form order.
func (f *Fields) FilledLines() []string {
	var lines []string
	for _, key := range Keys {
		if v, ok := f.Get(key); ok {
			lines = append(lines, fmt.Sprintf("%s: %s", Labels[key], v))
		}
	}
	return lines
}

// MissingKeys returns the wire keys of unset slots, in form order.
func (f *Fields) MissingKeys() []string {
	var keys []string
	for _, key := range Keys {
		if _, ok := f.Get(key); !ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// MissingLabels returns the labels of unset slots, in form order.
func (f *Fields) MissingLabels() []string {
	var labels []string
	for _, key := range Keys {
		if _, ok := f.Get(key); !ok {
			labels = append(labels, Labels[key])
		}
	}
	return labels
}
