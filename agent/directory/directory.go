package directory

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	statex "github.com/techflowhq/support-agent/agent/state"
)

// Directory is the in-memory customer mapping, loaded once from a CSV source.
// Read-only after Load, so it is safe for unlimited concurrent readers.
type Directory struct {
	byEmail map[string]*statex.CustomerProfile
	byID    map[string]*statex.CustomerProfile
	count   int
}

// Load reads the customer CSV once. A missing file is not an error; it yields
// an empty directory and every lookup misses, which the agents handle
// conversationally.
func Load(path string) (*Directory, error) {
	d := &Directory{
		byEmail: make(map[string]*statex.CustomerProfile),
		byID:    make(map[string]*statex.CustomerProfile),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("open customer directory: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read customer directory: %w", err)
	}
	if len(rows) < 2 {
		return d, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for _, row := range rows[1:] {
		p := &statex.CustomerProfile{
			CustomerID: field(row, "customer_id"),
			Name:       field(row, "name"),
			Email:      field(row, "email"),
			Tier:       strings.ToLower(field(row, "tier")),
			PlanType:   field(row, "plan_type"),
			Device:     field(row, "device"),
		}
		if p.CustomerID == "" && p.Email == "" {
			continue
		}
		if v, err := strconv.ParseFloat(field(row, "monthly_charge"), 64); err == nil {
			p.MonthlyCharge = v
		}
		if v, err := strconv.Atoi(field(row, "tenure_months")); err == nil {
			p.TenureMonths = v
		}
		if p.Email != "" {
			d.byEmail[strings.ToLower(p.Email)] = p
		}
		if p.CustomerID != "" {
			d.byID[strings.ToLower(p.CustomerID)] = p
		}
		d.count++
	}

	return d, nil
}

// Lookup resolves an email or customer id. A miss is a normal result.
func (d *Directory) Lookup(identity string) (*statex.CustomerProfile, bool) {
	key := strings.ToLower(strings.TrimSpace(identity))
	if key == "" {
		return nil, false
	}
	if strings.HasPrefix(key, "cust_") {
		p, ok := d.byID[key]
		return p, ok
	}
	p, ok := d.byEmail[key]
	return p, ok
}

// Len reports how many customer records were loaded.
func (d *Directory) Len() int {
	return d.count
}
