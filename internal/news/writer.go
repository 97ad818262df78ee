package news

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"moex-bonds/internal/model"
)

// FileName is the per-issuer news file name.
func FileName(company string) string {
	name := strings.ReplaceAll(company, " ", "_")
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)
	return name + ".txt"
}

// WriteFile writes items for company into dir, newest first, and returns the file path.
func WriteFile(dir, company string, items []model.NewsItem) (string, error) {
	sorted := append([]model.NewsItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.After(sorted[j].Published)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "News for %s\n", company)
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, it := range sorted {
		fmt.Fprintf(&b, "Date: %s\n", it.Published.Format("2006-01-02 15:04"))
		fmt.Fprintf(&b, "Source: %s\n", it.Source)
		fmt.Fprintf(&b, "Title: %s\n", it.Title)
		fmt.Fprintf(&b, "URL: %s\n", it.URL)
		b.WriteString(strings.Repeat("-", 30) + "\n\n")
	}

	path := filepath.Join(dir, FileName(company))
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", err
	}
	return path, nil
}
