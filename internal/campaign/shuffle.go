package campaign

import (
	"crypto/rand"
	"math/big"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// shuffle returns a Fisher-Yates permutation of audience using crypto/rand
// for each swap index, so variant assignment isn't predictable from a
// seeded PRNG ("randomly shuffle and partition the
// audience evenly across variants").
func shuffle(audience []domain.Customer) ([]domain.Customer, error) {
	out := make([]domain.Customer, len(audience))
	copy(out, audience)

	for i := len(out) - 1; i > 0; i-- {
		j, err := randIntN(i + 1)
		if err != nil {
			return nil, err
		}
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func randIntN(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
