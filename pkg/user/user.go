// Package user holds the user record stored in the collection and the error
// taxonomy shared by every layer that handles it.
package user

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the document key holding the storage generated identifier.
const IDField = "_id"

// User is a user profile as stored in the collection.
type User struct {
	ID       *primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name     string              `bson:"name" json:"name"`
	Age      int32               `bson:"age" json:"age"`
	Email    string              `bson:"email" json:"email"`
	Password string              `bson:"password" json:"password"`
	Username string              `bson:"username" json:"username"`
}

// input mirrors User with pointer fields so that absent keys can be told
// apart from zero values. Age and ID are kept raw and type-checked by build.
type input struct {
	ID       *bson.RawValue `bson:"_id,omitempty"`
	Name     *string        `bson:"name" validate:"required"`
	Age      *bson.RawValue `bson:"age" validate:"required"`
	Email    *string        `bson:"email" validate:"required"`
	Password *string        `bson:"password" validate:"required"`
	Username *string        `bson:"username" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("bson"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Parse decodes a JSON user. The input is read as relaxed MongoDB Extended
// JSON, so an "_id" may be given as {"$oid": "..."} or as a 24 digit hex string.
// The text must hold exactly one JSON object and "age" must be an integer.
func Parse(text string) (*User, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if !json.Valid(trimmed) {
		return nil, Errorf(KindMalformedInput, "not a single JSON value")
	}
	var in input
	if err := bson.UnmarshalExtJSON(trimmed, false, &in); err != nil {
		return nil, MalformedInput(err)
	}
	u, err := in.build(false)
	if err != nil {
		return nil, MalformedInput(err)
	}
	return u, nil
}

// FromDocument decodes a stored document with the same field checks as
// Parse. Integral doubles are accepted for "age", as written by shells that
// store every number as a double.
func FromDocument(doc bson.Raw) (*User, error) {
	var in input
	if err := bson.Unmarshal(doc, &in); err != nil {
		return nil, DeserializationFailure(err)
	}
	u, err := in.build(true)
	if err != nil {
		return nil, DeserializationFailure(err)
	}
	return u, nil
}

func (in *input) build(integralDoubles bool) (*User, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		return nil, fmt.Errorf("missing field(s): %s", strings.Join(missing, ", "))
	}

	age, err := int32Of(*in.Age, integralDoubles)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:     *in.Name,
		Age:      age,
		Email:    *in.Email,
		Password: *in.Password,
		Username: *in.Username,
	}
	if in.ID != nil {
		id, err := objectIDOf(*in.ID)
		if err != nil {
			return nil, err
		}
		u.ID = &id
	}
	return u, nil
}

func int32Of(v bson.RawValue, integralDoubles bool) (int32, error) {
	switch v.Type {
	case bsontype.Int32:
		return v.Int32(), nil
	case bsontype.Int64:
		n := v.Int64()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("age %d overflows int32", n)
		}
		return int32(n), nil
	case bsontype.Double:
		f := v.Double()
		if integralDoubles && f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			return int32(f), nil
		}
		return 0, fmt.Errorf("age %v is not an integer", f)
	}
	return 0, fmt.Errorf("age must be an integer, got %s", v.Type)
}

func objectIDOf(v bson.RawValue) (primitive.ObjectID, error) {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID(), nil
	case bsontype.String:
		id, err := primitive.ObjectIDFromHex(v.StringValue())
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("_id %q is not a hex ObjectID", v.StringValue())
		}
		return id, nil
	}
	return primitive.NilObjectID, fmt.Errorf("_id must be an ObjectID, got %s", v.Type)
}

// ParseID parses a hex encoded ObjectID.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, InvalidIdentifier(fmt.Errorf("%q: %w", s, err))
	}
	return id, nil
}

// AssignID attaches the identifier issued by storage. It can be called again
// only with the same value.
func (u *User) AssignID(id primitive.ObjectID) error {
	if id.IsZero() {
		return Errorf(KindIdentifierAssignment, "storage returned an empty ID")
	}
	if u.ID != nil && *u.ID != id {
		return Errorf(KindIdentifierAssignment, "user already has ID %s, refusing %s", u.ID.Hex(), id.Hex())
	}
	u.ID = &id
	return nil
}

// IDHex returns the hex identifier, or "" before insertion.
func (u *User) IDHex() string {
	if u.ID == nil {
		return ""
	}
	return u.ID.Hex()
}

func (u *User) String() string {
	id := u.IDHex()
	if id == "" {
		id = "none"
	}
	return fmt.Sprintf("User { id: %s, name: %s, age: %d, email: %s, username: %s }",
		id, u.Name, u.Age, u.Email, u.Username)
}

// Document returns the storage form of u. The identifier is omitted while unset.
func (u *User) Document() (bson.D, error) {
	data, err := bson.Marshal(u)
	if err != nil {
		return nil, SerializationFailure(err)
	}
	var doc bson.D
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, SerializationFailure(err)
	}
	return doc, nil
}

// Profile is the password-free view of a user used for printing and events.
type Profile struct {
	ID       string `json:"_id,omitempty" cbor:"_id,omitempty"`
	Name     string `json:"name" cbor:"name"`
	Age      int32  `json:"age" cbor:"age"`
	Email    string `json:"email" cbor:"email"`
	Username string `json:"username" cbor:"username"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:       u.IDHex(),
		Name:     u.Name,
		Age:      u.Age,
		Email:    u.Email,
		Username: u.Username,
	}
}
