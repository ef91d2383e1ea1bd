package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/fichas-scanner/constants"
)

func TestExtract_Name(t *testing.T) {
	rec := Extract("FICHA DE HÓSPEDE\nNome: Maria Silva\nCidade: Recife\n")
	assert.Equal(t, "Maria Silva", rec.Nome)
	assert.Equal(t, "Recife", rec.Cidade)

	rec = Extract("CPF: 123.456.789-01\n")
	assert.Equal(t, "", rec.Nome)
}

func TestExtract_CPFVariants(t *testing.T) {
	grouped := Extract("CPF: 123.456.789-01")
	plain := Extract("CPF: 12345678901")

	assert.Equal(t, "123.456.789-01", grouped.CPF)
	assert.Equal(t, "12345678901", plain.CPF)
	assert.Regexp(t, `^\d{3}\.?\d{3}\.?\d{3}-?\d{2}$`, grouped.CPF)
	assert.Regexp(t, `^\d{3}\.?\d{3}\.?\d{3}-?\d{2}$`, plain.CPF)
}

func TestExtract_Scenario(t *testing.T) {
	rec := Extract("Nome: Joao\nCPF: 111.222.333-44\nTelefone: (11) 98888-7777")

	assert.Equal(t, map[string]string{
		"nome":           "Joao",
		"cpf":            "111.222.333-44",
		"telefone":       "(11) 98888-7777",
		"dataNascimento": "",
		"cep":            "",
		"endereco":       "",
		"bairro":         "",
		"cidade":         "",
		"numero":         "",
		"email":          "",
	}, rec.Fields())
}

func TestExtract_FullForm(t *testing.T) {
	text := "Nome: Ana Paula Souza\n" +
		"CPF: 987.654.321-00\n" +
		"Data de Nascimento: 23/04/1988\n" +
		"Telefone: (81) 3222-1100\n" +
		"CEP: 50030-230\n" +
		"Endereço: Rua da Aurora\n" +
		"Número: 120\n" +
		"Bairro: Boa Vista\n" +
		"Cidade: Recife\n" +
		"Email: ana.souza@example.com\n"

	rec := Extract(text)
	assert.Equal(t, Record{
		Nome:           "Ana Paula Souza",
		CPF:            "987.654.321-00",
		DataNascimento: "23/04/1988",
		Telefone:       "(81) 3222-1100",
		CEP:            "50030-230",
		Endereco:       "Rua da Aurora",
		Bairro:         "Boa Vista",
		Cidade:         "Recife",
		Numero:         "120",
		Email:          "ana.souza@example.com",
	}, rec)
	assert.Empty(t, rec.Missing())
}

func TestExtract_EmptyAndGarbage(t *testing.T) {
	for _, in := range []string{"", "\n\n", "@@@ ### ???", "Nome:", string([]byte{0xff, 0xfe, 0x00})} {
		rec := Extract(in)
		fields := rec.Fields()
		require.Len(t, fields, len(constants.FieldKeys), "input %q", in)
		for _, k := range constants.FieldKeys {
			_, ok := fields[k]
			assert.True(t, ok, "key %s missing for input %q", k, in)
		}
	}
	assert.True(t, Extract("").IsEmpty())
}

func TestExtract_Idempotent(t *testing.T) {
	text := "Nome: Joao\nCPF: 111.222.333-44\nEmail: joao@x.com"
	assert.Equal(t, Extract(text), Extract(text))
}

func TestExtract_FirstMatchWins(t *testing.T) {
	rec := Extract("Nome: Primeiro\nNome: Segundo\n")
	assert.Equal(t, "Primeiro", rec.Nome)
}

func TestExtract_CaseInsensitiveUnicodeLabels(t *testing.T) {
	rec := Extract("ENDEREÇO: Av. Boa Viagem\nNÚMERO: 42\nnome: carla\nemail: C@D.COM")
	assert.Equal(t, "Av. Boa Viagem", rec.Endereco)
	assert.Equal(t, "42", rec.Numero)
	assert.Equal(t, "carla", rec.Nome)
	assert.Equal(t, "C@D.COM", rec.Email)
}

func TestExtract_KeepsPunctuation(t *testing.T) {
	rec := Extract("CEP: 50030230\nTelefone: (11)988887777\n")
	assert.Equal(t, "50030230", rec.CEP)
	assert.Equal(t, "(11)988887777", rec.Telefone)
}

func TestExtract_TrimsValue(t *testing.T) {
	rec := Extract("Bairro:    Centro   \r\nCidade:\tOlinda\t\n")
	assert.Equal(t, "Centro", rec.Bairro)
	assert.Equal(t, "Olinda", rec.Cidade)
}

func TestExtract_ValueOnNextLine(t *testing.T) {
	rec := Extract("Cidade:\nRecife\n")
	assert.Equal(t, "Recife", rec.Cidade)
}

func TestRecord_JSONKeys(t *testing.T) {
	b, err := json.Marshal(Extract("Nome: Joao"))
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Len(t, m, 10)
	assert.Equal(t, "Joao", m["nome"])
}

func TestRecord_FromFields(t *testing.T) {
	rec := FromFields(map[string]string{"nome": "Joao", "cidade": "Natal", "unknown": "x"})
	assert.Equal(t, "Joao", rec.Nome)
	assert.Equal(t, "Natal", rec.Get(constants.FieldCidade))
	assert.Equal(t, "", rec.Get("unknown"))
}

func TestRules_Table(t *testing.T) {
	rs := Rules()
	require.Len(t, rs, len(constants.FieldKeys))
	for i, r := range rs {
		assert.Equal(t, constants.FieldKeys[i], r.Key)
		assert.NotEmpty(t, r.Label)
	}

	rs[0].Key = "mutated"
	assert.Equal(t, constants.FieldNome, Rules()[0].Key)
}

func TestExtract_NoBreakSpaceSeparator(t *testing.T) {
	rec := Extract("Nome:\u00a0Maria\nCPF:\u00a0123.456.789-01\n" +
		"Telefone:\u00a0(11)\u00a098888-7777\nEmail:\u00a0m@x.com\u00a0fim")
	assert.Equal(t, "Maria", rec.Nome)
	assert.Equal(t, "123.456.789-01", rec.CPF)
	assert.Equal(t, "(11)\u00a098888-7777", rec.Telefone)
	assert.Equal(t, "m@x.com", rec.Email)
}
