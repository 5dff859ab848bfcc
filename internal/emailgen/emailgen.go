// Package emailgen produces random plausible email addresses for seeding
// test segments. Addresses follow the pattern name+4digits@domain and are
// not guaranteed unique.
package emailgen

import (
	"fmt"
	"math/rand/v2"
)

var domains = []string{
	"gmail.com",
	"yahoo.com",
	"outlook.com",
	"hotmail.com",
	"example.com",
	"test.com",
}

var usernames = []string{
	"user", "admin", "test", "john", "jane",
	"mike", "sarah", "david", "emma", "alex",
}

// Generate returns count random email addresses. Count must be positive.
func Generate(count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be a positive integer, got %d", count)
	}

	emails := make([]string, count)
	for i := range emails {
		username := usernames[rand.IntN(len(usernames))]
		domain := domains[rand.IntN(len(domains))]
		emails[i] = fmt.Sprintf("%s%04d@%s", username, rand.IntN(9000)+1000, domain)
	}
	return emails, nil
}
