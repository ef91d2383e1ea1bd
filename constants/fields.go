package constants

// Field keys of a guest registration record. These exact strings are the
// keys of the hand-off message consumed by the form filler.
const (
	FieldNome           = "nome"
	FieldCPF            = "cpf"
	FieldDataNascimento = "dataNascimento"
	FieldTelefone       = "telefone"
	FieldCEP            = "cep"
	FieldEndereco       = "endereco"
	FieldBairro         = "bairro"
	FieldCidade         = "cidade"
	FieldNumero         = "numero"
	FieldEmail          = "email"
)

// FieldKeys is the fixed, ordered key set of every record.
var FieldKeys = []string{
	FieldNome,
	FieldCPF,
	FieldDataNascimento,
	FieldTelefone,
	FieldCEP,
	FieldEndereco,
	FieldBairro,
	FieldCidade,
	FieldNumero,
	FieldEmail,
}

// FieldLabels maps each key to the label printed on the paper form.
var FieldLabels = map[string]string{
	FieldNome:           "Nome",
	FieldCPF:            "CPF",
	FieldDataNascimento: "Data de Nascimento",
	FieldTelefone:       "Telefone",
	FieldCEP:            "CEP",
	FieldEndereco:       "Endereço",
	FieldBairro:         "Bairro",
	FieldCidade:         "Cidade",
	FieldNumero:         "Número",
	FieldEmail:          "Email",
}

// DefaultLanguage is the OCR language used for the forms (Portuguese).
const DefaultLanguage = "por"
