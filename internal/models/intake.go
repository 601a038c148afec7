package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"plannerrun/internal/apperr"
)

// IntakeForm is the JSON body of create-checkout-session and save_user_input.
// Pointer fields distinguish an absent (or null) value from a zero value.
// json.Number accepts both 180 and "180".
type IntakeForm struct {
	Altura              *json.Number `json:"altura"`
	Peso                *json.Number `json:"peso"`
	Idade               *json.Number `json:"idade"`
	Objetivo            *string      `json:"objetivo"`
	DiasDisponiveis     *json.Number `json:"diasDisponiveis"`
	MesesAcompanhamento *json.Number `json:"mesesAcompanhamento"`
	NivelAtual          *string      `json:"nivelAtual"`
	Email               *string      `json:"email"`
}

// Tier returns the requested subscription length, or false when it is absent
// or not an integer.
func (f *IntakeForm) Tier() (int64, bool) {
	if f.MesesAcompanhamento == nil {
		return 0, false
	}
	n, err := integral(*f.MesesAcompanhamento)
	if err != nil {
		return 0, false
	}
	return n, true
}

// integral reads a whole number, written either as 5 or as 5.0.
func integral(v json.Number) (int64, error) {
	if n, err := v.Int64(); err == nil {
		return n, nil
	}
	x, err := v.Float64()
	if err != nil {
		return 0, err
	}
	if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
		return 0, fmt.Errorf("%s is not a whole number", v)
	}
	return int64(x), nil
}

// Intake validates that every field is present and well formed.
func (f *IntakeForm) Intake() (Intake, error) {
	const op = "models.IntakeForm"

	var (
		in       Intake
		missing  []string
		invalids []string
	)

	floatField := func(name string, v *json.Number, dst *float64) {
		if v == nil || strings.TrimSpace(v.String()) == "" {
			missing = append(missing, name)
			return
		}
		x, err := v.Float64()
		if err != nil {
			invalids = append(invalids, name)
			return
		}
		*dst = x
	}
	intField := func(name string, v *json.Number, dst *int) {
		if v == nil || strings.TrimSpace(v.String()) == "" {
			missing = append(missing, name)
			return
		}
		x, err := integral(*v)
		if err != nil {
			invalids = append(invalids, name)
			return
		}
		*dst = int(x)
	}
	stringField := func(name string, v *string, dst *string) {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
			return
		}
		*dst = strings.TrimSpace(*v)
	}

	floatField("altura", f.Altura, &in.Altura)
	floatField("peso", f.Peso, &in.Peso)
	intField("idade", f.Idade, &in.Idade)
	stringField("objetivo", f.Objetivo, &in.Objetivo)
	intField("diasDisponiveis", f.DiasDisponiveis, &in.Dias)
	intField("mesesAcompanhamento", f.MesesAcompanhamento, &in.Meses)
	stringField("nivelAtual", f.NivelAtual, &in.Nivel)
	stringField("email", f.Email, &in.Email)

	if len(missing) > 0 {
		return Intake{}, apperr.New(apperr.KindValidation, op,
			fmt.Sprintf("campos obrigatórios ausentes: %s", strings.Join(missing, ", ")))
	}
	if len(invalids) > 0 {
		return Intake{}, apperr.New(apperr.KindValidation, op,
			fmt.Sprintf("campos numéricos inválidos: %s", strings.Join(invalids, ", ")))
	}
	return in, nil
}

// Metadata keys stored on the checkout session.
const (
	MetaAltura   = "altura"
	MetaPeso     = "peso"
	MetaIdade    = "idade"
	MetaObjetivo = "objetivo"
	MetaDias     = "dias"
	MetaMeses    = "meses"
	MetaNivel    = "nivel"
	MetaEmail    = "email"
)

// Metadata flattens the intake into the string-only map Stripe accepts.
func (in Intake) Metadata() map[string]string {
	return map[string]string{
		MetaAltura:   strconv.FormatFloat(in.Altura, 'f', -1, 64),
		MetaPeso:     strconv.FormatFloat(in.Peso, 'f', -1, 64),
		MetaIdade:    strconv.Itoa(in.Idade),
		MetaObjetivo: in.Objetivo,
		MetaDias:     strconv.Itoa(in.Dias),
		MetaMeses:    strconv.Itoa(in.Meses),
		MetaNivel:    in.Nivel,
		MetaEmail:    in.Email,
	}
}

// IntakeFromMetadata reads back a session's metadata. Values that could not
// be stored in clientes (missing or non-numeric) are constraint errors.
func IntakeFromMetadata(meta map[string]string) (Intake, error) {
	const op = "models.IntakeFromMetadata"

	var (
		in  Intake
		bad []string
	)
	get := func(key string) (string, bool) {
		v, ok := meta[key]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			bad = append(bad, key)
			return "", false
		}
		return v, true
	}
	parseFloat := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				bad = append(bad, key)
				return
			}
			*dst = x
		}
	}
	parseInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			x, err := strconv.Atoi(v)
			if err != nil {
				bad = append(bad, key)
				return
			}
			*dst = x
		}
	}

	parseFloat(MetaAltura, &in.Altura)
	parseFloat(MetaPeso, &in.Peso)
	parseInt(MetaIdade, &in.Idade)
	parseInt(MetaDias, &in.Dias)
	parseInt(MetaMeses, &in.Meses)
	if v, ok := get(MetaObjetivo); ok {
		in.Objetivo = v
	}
	if v, ok := get(MetaNivel); ok {
		in.Nivel = v
	}
	if v, ok := get(MetaEmail); ok {
		in.Email = v
	}

	if len(bad) > 0 {
		return Intake{}, apperr.New(apperr.KindConstraint, op,
			fmt.Sprintf("session metadata has missing or invalid fields: %s", strings.Join(bad, ", ")))
	}
	return in, nil
}
