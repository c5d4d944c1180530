// Package geo resolves free-text city names, as typed by tournament
// organizers, to coordinates from a gazetteer of known cities.
package geo

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed data/pl.tsv
var polishCities string

// City is one gazetteer entry.
type City struct {
	City  string
	ASCII string
	Alt   []string
	Lat   float64
	Lng   float64
}

// LoadGazetteer reads tab-separated rows of id, name, ASCII name,
// comma-separated alternate names, latitude and longitude. Double quotes are
// stripped from every column. Rows with an empty id, missing columns or
// unparsable coordinates are skipped.
func LoadGazetteer(r io.Reader) ([]City, error) {
	var cities []City
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		cols := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if cols[0] == "" || len(cols) < 6 {
			continue
		}
		for i := range cols {
			cols[i] = strings.ReplaceAll(cols[i], `"`, "")
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(cols[4]), 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(cols[5]), 64)
		if err != nil {
			continue
		}
		city := City{City: cols[1], ASCII: cols[2], Lat: lat, Lng: lng}
		for _, alt := range strings.Split(cols[3], ",") {
			if alt != "" {
				city.Alt = append(city.Alt, alt)
			}
		}
		cities = append(cities, city)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	return cities, nil
}

// LoadGazetteerFile reads a gazetteer from disk.
func LoadGazetteerFile(path string) ([]City, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gazetteer: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadGazetteer(f)
}

// DefaultGazetteer returns the built-in table of Polish cities.
func DefaultGazetteer() ([]City, error) {
	return LoadGazetteer(strings.NewReader(polishCities))
}
