package models

import (
	"encoding/json"
	"strings"
	"testing"

	"plannerrun/internal/apperr"
)

func decodeForm(t *testing.T, body string) *IntakeForm {
	t.Helper()
	var f IntakeForm
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("Failed to decode form: %v", err)
	}
	return &f
}

func TestIntakeFormComplete(t *testing.T) {
	t.Parallel()

	f := decodeForm(t, `{
		"altura": 180, "peso": 75.5, "idade": "30", "objetivo": "perder peso",
		"diasDisponiveis": 4, "mesesAcompanhamento": 5, "nivelAtual": "intermediário",
		"email": "a@b.com"
	}`)

	in, err := f.Intake()
	if err != nil {
		t.Fatalf("Intake failed: %v", err)
	}

	want := Intake{Altura: 180, Peso: 75.5, Idade: 30, Objetivo: "perder peso", Dias: 4, Meses: 5, Nivel: "intermediário", Email: "a@b.com"}
	if in != want {
		t.Errorf("Expected %+v, got %+v", want, in)
	}

	tier, ok := f.Tier()
	if !ok || tier != 5 {
		t.Errorf("Expected tier 5, got %d (ok=%v)", tier, ok)
	}
}

func TestIntakeFormMissingFields(t *testing.T) {
	t.Parallel()

	f := decodeForm(t, `{"altura": 180, "peso": null, "objetivo": "  ", "email": "a@b.com"}`)

	_, err := f.Intake()
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	for _, field := range []string{"peso", "idade", "objetivo", "diasDisponiveis", "mesesAcompanhamento", "nivelAtual"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Expected %q to be reported missing in %q", field, err.Error())
		}
	}
	if strings.Contains(err.Error(), "altura") {
		t.Errorf("altura was present but reported missing: %q", err.Error())
	}
}

func TestIntakeFormAcceptsZero(t *testing.T) {
	t.Parallel()

	f := decodeForm(t, `{
		"altura": 170, "peso": 60, "idade": 0, "objetivo": "correr 5km",
		"diasDisponiveis": 0, "mesesAcompanhamento": 3, "nivelAtual": "Iniciante",
		"email": "x@y.com"
	}`)

	in, err := f.Intake()
	if err != nil {
		t.Fatalf("Expected zero values to be accepted, got %v", err)
	}
	if in.Idade != 0 || in.Dias != 0 {
		t.Errorf("Expected zeros preserved, got idade=%d dias=%d", in.Idade, in.Dias)
	}
}

func TestIntakeFormNonIntegerAge(t *testing.T) {
	t.Parallel()

	f := decodeForm(t, `{
		"altura": 170, "peso": 60, "idade": 30.5, "objetivo": "correr 5km",
		"diasDisponiveis": 3, "mesesAcompanhamento": 3, "nivelAtual": "Iniciante",
		"email": "x@y.com"
	}`)

	_, err := f.Intake()
	if !apperr.Is(err, apperr.KindValidation) || !strings.Contains(err.Error(), "idade") {
		t.Errorf("Expected validation error naming idade, got %v", err)
	}
}

func TestTierAbsentOrFractional(t *testing.T) {
	t.Parallel()

	if _, ok := decodeForm(t, `{}`).Tier(); ok {
		t.Error("Expected no tier for empty form")
	}
	if _, ok := decodeForm(t, `{"mesesAcompanhamento": 3.5}`).Tier(); ok {
		t.Error("Expected no tier for fractional months")
	}
}

func TestIntegralFloats(t *testing.T) {
	t.Parallel()

	f := decodeForm(t, `{
		"altura": 170, "peso": 60, "idade": 30.0, "objetivo": "correr 5km",
		"diasDisponiveis": "4.0", "mesesAcompanhamento": 5.0, "nivelAtual": "Iniciante",
		"email": "x@y.com"
	}`)

	tier, ok := f.Tier()
	if !ok || tier != 5 {
		t.Errorf("Expected tier 5, got %d (%v)", tier, ok)
	}
	in, err := f.Intake()
	if err != nil {
		t.Fatalf("Expected whole floats to be accepted, got %v", err)
	}
	if in.Idade != 30 || in.Dias != 4 || in.Meses != 5 {
		t.Errorf("Unexpected integers idade=%d dias=%d meses=%d", in.Idade, in.Dias, in.Meses)
	}

	for _, months := range []string{"3.5", "5.000001", "1e300"} {
		if _, ok := decodeForm(t, `{"mesesAcompanhamento": `+months+`}`).Tier(); ok {
			t.Errorf("Expected no tier for %s", months)
		}
	}
}

func TestMetadataIsFlatStrings(t *testing.T) {
	t.Parallel()

	in := Intake{Altura: 180, Peso: 72.3, Idade: 30, Objetivo: "meia maratona", Dias: 4, Meses: 6, Nivel: "Avançado", Email: "a@b.com"}
	meta := in.Metadata()

	want := map[string]string{
		"altura": "180", "peso": "72.3", "idade": "30", "objetivo": "meia maratona",
		"dias": "4", "meses": "6", "nivel": "Avançado", "email": "a@b.com",
	}
	if len(meta) != len(want) {
		t.Fatalf("Expected %d keys, got %d: %v", len(want), len(meta), meta)
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("metadata[%q] = %q, want %q", k, meta[k], v)
		}
	}

	back, err := IntakeFromMetadata(meta)
	if err != nil {
		t.Fatalf("IntakeFromMetadata failed: %v", err)
	}
	if back != in {
		t.Errorf("Expected %+v, got %+v", in, back)
	}
}

func TestIntakeFromMetadataRejectsBadValues(t *testing.T) {
	t.Parallel()

	meta := map[string]string{
		"altura": "180", "peso": "75", "idade": "trinta", "objetivo": "5km",
		"dias": "4", "meses": "5", "nivel": "Iniciante",
	}

	_, err := IntakeFromMetadata(meta)
	if !apperr.Is(err, apperr.KindConstraint) {
		t.Fatalf("Expected constraint error, got %v", err)
	}
	if !strings.Contains(err.Error(), "idade") || !strings.Contains(err.Error(), "email") {
		t.Errorf("Expected idade and email reported, got %q", err.Error())
	}
}
