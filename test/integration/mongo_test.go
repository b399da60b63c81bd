package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sandrolain/userkit/pkg/bulk"
	"github.com/sandrolain/userkit/pkg/gateway"
	"github.com/sandrolain/userkit/pkg/testpayload"
	"github.com/sandrolain/userkit/pkg/user"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const alice = `{"name":"Alice","age":30,"email":"alice@example.com","password":"secret","username":"alice"}`

func openGateway(t *testing.T, uri string) *gateway.Gateway {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	g, err := gateway.Open(ctx, uri, "test", "users_"+primitive.NewObjectID().Hex())
	if err != nil {
		t.Fatalf("gateway.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g
}

func TestGatewayCRUDIntegration(t *testing.T) {
	g := openGateway(t, startMongo(t))
	ctx := context.Background()

	created, err := g.Create(ctx, alice)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == nil {
		t.Fatal("Create() returned a user without id")
	}

	users, err := g.Read(ctx, gateway.Filter{"name": "Alice"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(users) != 1 || users[0].IDHex() != created.IDHex() || users[0].Password != "secret" {
		t.Fatalf("Read() = %v", users)
	}
	if strings.Contains(users[0].String(), "secret") {
		t.Error("rendered user leaks password")
	}

	out, err := g.Update(ctx, created.IDHex(), strings.Replace(alice, `"age":30`, `"age":31`, 1))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if out.Matched != 1 || out.Affected != 1 {
		t.Errorf("Update() = %+v", out)
	}

	users, err = g.Read(ctx, gateway.Filter{user.IDField: created.IDHex()})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(users) != 1 || users[0].Age != 31 {
		t.Errorf("Read() after update = %v", users)
	}

	out, err = g.Delete(ctx, created.IDHex())
	if err != nil || out.Affected != 1 {
		t.Fatalf("Delete() = %+v, %v", out, err)
	}
	out, err = g.Delete(ctx, created.IDHex())
	if err != nil || out.Affected != 0 {
		t.Errorf("second Delete() = %+v, %v", out, err)
	}
}

func TestBulkCreateIntegration(t *testing.T) {
	g := openGateway(t, startMongo(t))
	ctx := context.Background()

	data, err := testpayload.GenerateUsersJSON(200)
	if err != nil {
		t.Fatalf("GenerateUsersJSON() error = %v", err)
	}
	report, err := bulk.CreateMany(ctx, g, string(data), bulk.WithWorkers(8))
	if err != nil {
		t.Fatalf("CreateMany() error = %v", err)
	}
	if report.Created != 200 {
		t.Errorf("Created = %d, want 200", report.Created)
	}

	users, err := g.Read(ctx, gateway.Filter{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	ids := map[string]bool{}
	for _, u := range users {
		ids[u.IDHex()] = true
	}
	if len(users) != 200 || len(ids) != 200 {
		t.Errorf("stored %d users with %d distinct ids, want 200", len(users), len(ids))
	}
}

func TestBulkCreateCollectsFailuresIntegration(t *testing.T) {
	g := openGateway(t, startMongo(t))
	ctx := context.Background()

	records := make([]string, 0, 20)
	for i := range 20 {
		if i%5 == 0 {
			records = append(records, `{"name":"broken"}`)
			continue
		}
		records = append(records, fmt.Sprintf(`{"name":"User %d","age":%d,"email":"u%d@example.com","password":"pw","username":"u%d"}`, i, 20+i, i, i))
	}
	report, err := bulk.CreateMany(ctx, g, "["+strings.Join(records, ",")+"]")
	if !errors.Is(err, user.ErrMalformedInput) {
		t.Fatalf("CreateMany() error = %v, want MalformedInput", err)
	}
	if report.Created != 16 || report.Failed != 4 {
		t.Errorf("report = created %d failed %d, want 16 and 4", report.Created, report.Failed)
	}
}

func TestWatchIntegration(t *testing.T) {
	uri := startMongoReplicaSet(t)

	var g *gateway.Gateway
	deadline := time.Now().Add(30 * time.Second)
	for {
		g = openGateway(t, uri)
		if _, err := g.Read(context.Background(), gateway.Filter{}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("replica set did not elect a primary")
		}
		time.Sleep(500 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events := make(chan gateway.ChangeEvent, 4)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- g.Watch(ctx, func(evt gateway.ChangeEvent) error {
			events <- evt
			return nil
		})
	}()
	time.Sleep(time.Second)

	created, err := g.Create(ctx, alice)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	select {
	case evt := <-events:
		if evt.Operation != "insert" || evt.ID != created.IDHex() {
			t.Errorf("event = %+v, want insert of %s", evt, created.IDHex())
		}
		if evt.User == nil || evt.User.Name != "Alice" {
			t.Errorf("event user = %v", evt.User)
		}
	case <-ctx.Done():
		t.Fatal("no change event received")
	}

	cancel()
	if err := <-watchErr; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
