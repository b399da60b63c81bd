// Package testpayload generates fake user records for seeding and load tests.
package testpayload

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-faker/faker/v4"
)

// UserPayload is a user record in the shape accepted by the create command.
// https://github.com/go-faker/faker#supported-tags
type UserPayload struct {
	Name     string `faker:"name" json:"name" cbor:"name"`
	Age      int32  `faker:"boundary_start=18, boundary_end=90" json:"age" cbor:"age"`
	Email    string `faker:"email" json:"email" cbor:"email"`
	Password string `faker:"password" json:"password" cbor:"password"`
	Username string `faker:"username" json:"username" cbor:"username"`
}

// GenerateUser returns a user with realistic random values.
func GenerateUser() UserPayload {
	var p UserPayload
	if err := faker.FakeData(&p); err != nil {
		n := rand.Intn(1_000_000) // #nosec G404 -- test data generator
		p = UserPayload{
			Name:     fmt.Sprintf("User %d", n),
			Age:      30,
			Email:    fmt.Sprintf("user%d@example.com", n),
			Password: "changeme",
			Username: fmt.Sprintf("user%d", n),
		}
	}
	return p
}

// GenerateUsers returns n random users.
func GenerateUsers(n int) []UserPayload {
	if n < 0 {
		n = 0
	}
	users := make([]UserPayload, n)
	for i := range users {
		users[i] = GenerateUser()
	}
	return users
}

// GenerateUserJSON encodes one random user as a JSON object.
func GenerateUserJSON() ([]byte, error) {
	return json.Marshal(GenerateUser())
}

// GenerateUsersJSON encodes n random users as a JSON array.
func GenerateUsersJSON(n int) ([]byte, error) {
	return json.Marshal(GenerateUsers(n))
}

// GenerateUsersCBOR encodes n random users as a CBOR array.
func GenerateUsersCBOR(n int) ([]byte, error) {
	return cbor.Marshal(GenerateUsers(n))
}
