// Package seed reads expense fixtures from YAML documents of the form
//
//	gastos:
//	  - fecha: 2024-01-31
//	    monto: "1.250,00"
//	    descripcion: Alquiler oficina
//	    es_recurrente: true
//	    frecuencia: MENSUAL
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"gastos/internal/core"
)

type document struct {
	Gastos []record `yaml:"gastos"`
}

type record struct {
	ID           int64             `yaml:"id"`
	Fecha        scalar            `yaml:"fecha"`
	Monto        scalar            `yaml:"monto"`
	Descripcion  string            `yaml:"descripcion"`
	Categoria    string            `yaml:"categoria"`
	Moneda       string            `yaml:"moneda"`
	Notas        string            `yaml:"notas"`
	EsRecurrente bool              `yaml:"es_recurrente"`
	Frecuencia   string            `yaml:"frecuencia"`
	Activo       *bool             `yaml:"activo"`
	Extra        map[string]string `yaml:"extra"`
}

// scalar keeps the literal text of a YAML scalar, so dates and numbers are
// parsed by core rather than by the YAML resolver.
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	if n.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = scalar(n.Value)
	return nil
}

// Load reads and validates the seed file at path.
func Load(path string) ([]core.Expense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	expenses, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return expenses, nil
}

// Parse decodes a seed document. Every record is checked and all problems
// are reported together.
func Parse(r io.Reader) ([]core.Expense, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	expenses := make([]core.Expense, 0, len(doc.Gastos))
	var errs []error
	for i, rec := range doc.Gastos {
		e, err := rec.expense()
		if err != nil {
			errs = append(errs, fmt.Errorf("gasto %d: %w", i+1, err))
			continue
		}
		expenses = append(expenses, e)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return expenses, nil
}

func (r record) expense() (core.Expense, error) {
	date, err := core.ParseDate(string(r.Fecha))
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(string(r.Monto))
	if err != nil {
		return core.Expense{}, fmt.Errorf("monto %q: %w", r.Monto, err)
	}

	active := true
	if r.Activo != nil {
		active = *r.Activo
	}

	e := core.Expense{
		ID:          r.ID,
		Date:        date,
		Amount:      amount,
		Recurring:   r.EsRecurrente,
		Frequency:   r.Frecuencia,
		Active:      active,
		Description: r.Descripcion,
		Category:    r.Categoria,
		Currency:    r.Moneda,
		Notes:       r.Notas,
		Extra:       r.Extra,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
