package usecase

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/metrics"
	"github.com/Mao1229/moemail/internal/ports"
)

// Wide alphabet keeps the collision probability negligible at 12 characters.
const (
	localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789_"
	localPartLen      = 12
	attemptMultiplier = 5
)

// Generator produces collision-checked randomized addresses under a domain.
type Generator struct {
	Addresses ports.AddressStore
}

// Generate returns up to n unique addresses of the form <local>@<domainName>.
// Candidates colliding with the current call or with durable storage are
// discarded silently; the attempt budget is 5*n. Returning fewer than n
// addresses is not an error; the caller decides how partial yield maps to
// progress.
func (g Generator) Generate(ctx context.Context, domainName string, n int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)

	for attempts := 0; attempts < n*attemptMultiplier && len(out) < n; attempts++ {
		local, err := randomLocalPart(localPartLen)
		if err != nil {
			return out, fmt.Errorf("generate local part: %w", err)
		}
		addr := local + "@" + domainName
		key := domain.NormalizeAddress(addr)

		if _, dup := seen[key]; dup {
			metrics.CollisionsDiscarded.Inc()
			continue
		}
		taken, err := g.Addresses.Exists(ctx, key)
		if err != nil {
			return out, fmt.Errorf("check address collision: %w", err)
		}
		if taken {
			metrics.CollisionsDiscarded.Inc()
			continue
		}

		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

func randomLocalPart(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = localPartAlphabet[int(b)%len(localPartAlphabet)]
	}
	return string(buf), nil
}
