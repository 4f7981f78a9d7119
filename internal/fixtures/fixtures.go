// Package fixtures generates synthetic account and identifier-history CSV
// files for load and end-to-end testing.
package fixtures

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

//go:embed names.txt
var namesFile string

var names = strings.Fields(namesFile)

const (
	AccountsFile = "accounts.csv"
	LIDsFile     = "lids.csv"
	UVIDsFile    = "uvids.csv"
)

var (
	AccountsHeader = []string{"firstname", "LastName", "DOB", "LID", "LawsonId", "email", "affiliation", "status"}
	LIDsHeader     = []string{"LawsonId", "LID", "Legal First Name", "Legal Middle Name", "Legal Last Name",
		"Preferred First Name", "Preferred Last Name", "groups", "Consolidated Search Field", "dob"}
	UVIDsHeader = []string{"LawsonId", "LID", "Legal First Name", "Legal Middle Name", "Legal Last Name",
		"Preferred First Name", "Preferred Last Name", "UVID", "groups", "dob"}
)

// dobEpoch anchors generated birth dates so output depends on the seed only.
var dobEpoch = time.Date(2005, time.January, 1, 0, 0, 0, 0, time.UTC)

// Person is one generated identity.
type Person struct {
	FirstName   string
	LastName    string
	DOB         string
	LID         string
	LawsonID    string
	UVID        string
	SearchField string
}

// Set is a generated fixture batch.
type Set struct {
	People []Person
}

// Generate returns n people. The same seed always yields the same set.
func Generate(n int, seed uint64) *Set {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	uvids := make(map[string]bool, n)

	s := &Set{People: make([]Person, 0, n)}
	for i := 1; i <= n; i++ {
		p := Person{
			FirstName: names[r.IntN(len(names))],
			LastName:  names[r.IntN(len(names))],
			LID:       fmt.Sprintf("%07d", i),
			LawsonID:  fmt.Sprintf("B%07d", i),
		}
		dob := dobEpoch.AddDate(0, 0, -r.IntN(365*60))
		p.DOB = fmt.Sprintf("%d/%d/%d", int(dob.Month()), dob.Day(), dob.Year())

		base := strings.ToLower(p.FirstName[:1] + p.LastName)
		p.UVID = base
		for c := 1; uvids[p.UVID]; c++ {
			p.UVID = base + strconv.Itoa(c)
		}
		uvids[p.UVID] = true

		p.SearchField = strings.ToUpper(p.FirstName + p.LastName + p.DOB)
		s.People = append(s.People, p)
	}
	return s
}

func (s *Set) AccountRows() [][]string {
	rows := [][]string{AccountsHeader}
	for _, p := range s.People {
		rows = append(rows, []string{p.FirstName, p.LastName, p.DOB, "", p.LawsonID, "none@test.com", "employee", "A"})
	}
	return rows
}

func (s *Set) LIDRows() [][]string {
	rows := [][]string{LIDsHeader}
	for _, p := range s.People {
		rows = append(rows, []string{p.LawsonID, p.LID, p.FirstName, "", p.LastName,
			p.FirstName, p.LastName, "", p.SearchField, p.DOB})
	}
	return rows
}

func (s *Set) UVIDRows() [][]string {
	rows := [][]string{UVIDsHeader}
	for _, p := range s.People {
		rows = append(rows, []string{p.LawsonID, p.LID, p.FirstName, "", p.LastName,
			p.FirstName, p.LastName, p.UVID, "", p.DOB})
	}
	return rows
}

// WriteDir writes accounts.csv, lids.csv and uvids.csv into dir.
func (s *Set) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := map[string][][]string{
		AccountsFile: s.AccountRows(),
		LIDsFile:     s.LIDRows(),
		UVIDsFile:    s.UVIDRows(),
	}
	for name, rows := range files {
		if err := writeCSV(filepath.Join(dir, name), rows); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

func writeCSV(path string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return nil
}
