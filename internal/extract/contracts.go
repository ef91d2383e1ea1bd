// Package extract turns raw OCR text from a guest registration form into a
// Record of ten named fields. Extraction is a pure function over a fixed
// rule table: a field that is not found is an empty string, never an error.
package extract

import (
	"github.com/joseph-ayodele/fichas-scanner/constants"
)

// Record is the structured result of one extraction. Every key of
// constants.FieldKeys is always present; "" means the field was not found.
type Record struct {
	Nome           string `json:"nome"`
	CPF            string `json:"cpf"`
	DataNascimento string `json:"dataNascimento"`
	Telefone       string `json:"telefone"`
	CEP            string `json:"cep"`
	Endereco       string `json:"endereco"`
	Bairro         string `json:"bairro"`
	Cidade         string `json:"cidade"`
	Numero         string `json:"numero"`
	Email          string `json:"email"`
}

// field returns a pointer to the struct field stored under key, or nil.
func (r *Record) field(key string) *string {
	switch key {
	case constants.FieldNome:
		return &r.Nome
	case constants.FieldCPF:
		return &r.CPF
	case constants.FieldDataNascimento:
		return &r.DataNascimento
	case constants.FieldTelefone:
		return &r.Telefone
	case constants.FieldCEP:
		return &r.CEP
	case constants.FieldEndereco:
		return &r.Endereco
	case constants.FieldBairro:
		return &r.Bairro
	case constants.FieldCidade:
		return &r.Cidade
	case constants.FieldNumero:
		return &r.Numero
	case constants.FieldEmail:
		return &r.Email
	}
	return nil
}

// Get returns the value stored under key ("" for unknown keys).
func (r Record) Get(key string) string {
	if p := r.field(key); p != nil {
		return *p
	}
	return ""
}

// Fields returns a fresh map holding all ten keys.
func (r Record) Fields() map[string]string {
	m := make(map[string]string, len(constants.FieldKeys))
	for _, k := range constants.FieldKeys {
		m[k] = r.Get(k)
	}
	return m
}

// Missing lists, in key order, the fields that were not found.
func (r Record) Missing() []string {
	var out []string
	for _, k := range constants.FieldKeys {
		if r.Get(k) == "" {
			out = append(out, k)
		}
	}
	return out
}

// IsEmpty reports whether no field was found at all.
func (r Record) IsEmpty() bool {
	return len(r.Missing()) == len(constants.FieldKeys)
}

// FromFields builds a Record from a key/value map. Unknown keys are ignored.
func FromFields(m map[string]string) Record {
	var r Record
	for k, v := range m {
		if p := r.field(k); p != nil {
			*p = v
		}
	}
	return r
}
