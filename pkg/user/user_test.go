package user

import (
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const carolineJSON = `
	{
		"name": "Caroline",
		"age": 26,
		"email": "cph-ch465@cphbusiness.dk",
		"password": "password123",
		"username": "carol"
	}`

func TestParse(t *testing.T) {
	t.Run("Valid user", func(t *testing.T) {
		u, err := Parse(carolineJSON)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		want := User{
			Name:     "Caroline",
			Age:      26,
			Email:    "cph-ch465@cphbusiness.dk",
			Password: "password123",
			Username: "carol",
		}
		if u.ID != nil {
			t.Errorf("Parse() ID = %v, want nil", u.ID)
		}
		got := *u
		got.ID = nil
		if got != want {
			t.Errorf("Parse() = %+v, want %+v", got, want)
		}
	})

	t.Run("Zero values are accepted", func(t *testing.T) {
		u, err := Parse(`{"name":"","age":0,"email":"","password":"","username":""}`)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if u.Age != 0 || u.Name != "" {
			t.Errorf("Parse() = %+v, want zero fields", u)
		}
	})

	t.Run("Identifier round-trips", func(t *testing.T) {
		id := primitive.NewObjectID()
		inputs := []string{
			`{"_id":{"$oid":"` + id.Hex() + `"},"name":"A","age":1,"email":"a@x","password":"p","username":"a"}`,
			`{"_id":"` + id.Hex() + `","name":"A","age":1,"email":"a@x","password":"p","username":"a"}`,
		}
		for _, in := range inputs {
			u, err := Parse(in)
			if err != nil {
				t.Fatalf("Parse(%s) error = %v", in, err)
			}
			if u.ID == nil || *u.ID != id {
				t.Errorf("Parse(%s) ID = %v, want %s", in, u.ID, id.Hex())
			}
		}
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Unquoted keys", `{name: "Maria"}`, ""},
		{"Only name", `{"name":"Maria"}`, "age, email, password, username"},
		{"Missing password", `{"name":"A","age":1,"email":"a@x","username":"a"}`, "password"},
		{"Age as string", `{"name":"A","age":"1","email":"a@x","password":"p","username":"a"}`, ""},
		{"Fractional age", `{"name":"A","age":1.5,"email":"a@x","password":"p","username":"a"}`, ""},
		{"Name as number", `{"name":5,"age":1,"email":"a@x","password":"p","username":"a"}`, ""},
		{"Bad identifier", `{"_id":"nope","name":"A","age":1,"email":"a@x","password":"p","username":"a"}`, ""},
		{"Twelve byte string identifier", `{"_id":"abcdefghijkl","name":"A","age":1,"email":"a@x","password":"p","username":"a"}`, "_id"},
		{"Numeric identifier", `{"_id":7,"name":"A","age":1,"email":"a@x","password":"p","username":"a"}`, "_id"},
		{"Integral float age", `{"name":"A","age":2.0,"email":"a@x","password":"p","username":"a"}`, "age"},
		{"Age overflows int32", `{"name":"A","age":3000000000,"email":"a@x","password":"p","username":"a"}`, "age"},
		{"Trailing garbage", `{"name":"A","age":1,"email":"a@x","password":"p","username":"a"} trailing`, ""},
		{"Two objects", `{"name":"A","age":1,"email":"a@x","password":"p","username":"a"}{}`, ""},
		{"Array", `[]`, ""},
		{"Empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("Parse() error = %v, want MalformedInput", err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	u, err := Parse(carolineJSON)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := u.String()
	want := "User { id: none, name: Caroline, age: 26, email: cph-ch465@cphbusiness.dk, username: carol }"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if strings.Contains(got, "password123") {
		t.Error("String() leaked the password")
	}

	id := primitive.NewObjectID()
	if err := u.AssignID(id); err != nil {
		t.Fatalf("AssignID() error = %v", err)
	}
	if !strings.Contains(u.String(), "id: "+id.Hex()) {
		t.Errorf("String() = %q, want id %s", u.String(), id.Hex())
	}
}

func TestAssignID(t *testing.T) {
	u := &User{Name: "A"}
	first := primitive.NewObjectID()

	if err := u.AssignID(primitive.NilObjectID); !errors.Is(err, ErrIdentifierAssignment) {
		t.Errorf("AssignID(nil) error = %v, want IdentifierAssignment", err)
	}
	if err := u.AssignID(first); err != nil {
		t.Fatalf("AssignID() error = %v", err)
	}
	if err := u.AssignID(first); err != nil {
		t.Errorf("AssignID(same) error = %v", err)
	}
	if err := u.AssignID(primitive.NewObjectID()); !errors.Is(err, ErrIdentifierAssignment) {
		t.Errorf("AssignID(other) error = %v, want IdentifierAssignment", err)
	}
	if *u.ID != first {
		t.Errorf("ID changed to %s", u.ID.Hex())
	}
}

func TestDocument(t *testing.T) {
	u, err := Parse(carolineJSON)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	doc, err := u.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	for _, e := range doc {
		if e.Key == IDField {
			t.Fatal("Document() contains _id before insertion")
		}
	}
	if len(doc) != 5 {
		t.Errorf("Document() has %d fields, want 5", len(doc))
	}

	id := primitive.NewObjectID()
	_ = u.AssignID(id)
	doc, err = u.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc[0].Key != IDField || doc[0].Value != id {
		t.Errorf("Document()[0] = %v, want _id %s", doc[0], id.Hex())
	}
}

func TestProfile(t *testing.T) {
	u, err := Parse(carolineJSON)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p := u.Profile()
	if p.ID != "" {
		t.Errorf("Profile().ID = %q, want empty", p.ID)
	}
	if p.Name != u.Name || p.Age != u.Age || p.Email != u.Email || p.Username != u.Username {
		t.Errorf("Profile() = %+v, does not match %+v", p, u)
	}
}

func TestParseID(t *testing.T) {
	id := primitive.NewObjectID()
	got, err := ParseID(id.Hex())
	if err != nil || got != id {
		t.Errorf("ParseID() = %v, %v, want %v", got, err, id)
	}
	if _, err := ParseID("123"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("ParseID(123) error = %v, want InvalidIdentifier", err)
	}
}

func TestFromDocument(t *testing.T) {
	id := primitive.NewObjectID()
	tests := []struct {
		name    string
		doc     bson.M
		wantAge int32
		wantErr bool
	}{
		{"Complete", bson.M{"_id": id, "name": "A", "age": int32(30), "email": "a@x", "password": "p", "username": "a"}, 30, false},
		{"Int64 age", bson.M{"_id": id, "name": "A", "age": int64(30), "email": "a@x", "password": "p", "username": "a"}, 30, false},
		{"Integral double age", bson.M{"_id": id, "name": "A", "age": 30.0, "email": "a@x", "password": "p", "username": "a"}, 30, false},
		{"Fractional age", bson.M{"_id": id, "name": "A", "age": 30.5, "email": "a@x", "password": "p", "username": "a"}, 0, true},
		{"Missing fields", bson.M{"_id": id, "name": "Half"}, 0, true},
		{"Age as string", bson.M{"_id": id, "name": "A", "age": "old", "email": "a@x", "password": "p", "username": "a"}, 0, true},
		{"String identifier", bson.M{"_id": "user-1", "name": "A", "age": int32(30), "email": "a@x", "password": "p", "username": "a"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.doc)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			u, err := FromDocument(raw)
			if tt.wantErr {
				if !errors.Is(err, ErrDeserialization) {
					t.Errorf("FromDocument() error = %v, want DeserializationFailure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromDocument() error = %v", err)
			}
			if u.Age != tt.wantAge || u.ID == nil || *u.ID != id {
				t.Errorf("FromDocument() = %+v", u)
			}
		})
	}
}
