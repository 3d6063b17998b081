package main

import (
	"bytes"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/rl1809/vending-ledger/internal/adapter/handler"
	"github.com/rl1809/vending-ledger/internal/adapter/storage"
	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
)

// runCLI executes vendctl with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configDir, dbPath, grpcAddr, sender, jsonOutput = "", "", "", "", false
	initOwner, initItems, auditN = "", nil, 20
	client = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", t.TempDir()}, args...))
	err := rootCmd.Execute()
	require.NoError(t, closeClient())
	return out.String(), err
}

func TestCLI_LocalLedger(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")

	out, err := runCLI(t, "--db", db, "init", "--owner", "owner", "--item", "chocolate=1", "--item", "water=3")
	require.NoError(t, err)
	assert.Contains(t, out, "action: instantiate")
	assert.Contains(t, out, "owner: owner")

	out, err = runCLI(t, "--db", db, "--sender", "user", "withdraw", "chocolate")
	require.NoError(t, err)
	assert.Contains(t, out, "item_retrieved item=chocolate total_amount=0")

	_, err = runCLI(t, "--db", db, "--sender", "user", "withdraw", "chocolate")
	assert.ErrorIs(t, err, service.ErrOutOfStock)

	_, err = runCLI(t, "--db", db, "--sender", "user", "restock", "chocolate", "2")
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	out, err = runCLI(t, "--db", db, "--sender", "owner", "restock", "chocolate", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "item_refilled item=chocolate amount=2 total_amount=2")

	out, err = runCLI(t, "--db", db, "--json", "items")
	require.NoError(t, err)
	var items []domain.ItemAmount
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Equal(t, []domain.ItemAmount{
		{Item: domain.Chocolate, Amount: 2},
		{Item: domain.Water, Amount: 3},
		{Item: domain.Chips, Amount: 0},
	}, items)

	out, err = runCLI(t, "--db", db, "--json", "audit")
	require.NoError(t, err)
	var records []domain.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 3, "only committed calls are audited")
	actions := map[domain.Action]int{}
	for _, r := range records {
		actions[r.Action]++
	}
	assert.Equal(t, map[domain.Action]int{
		domain.ActionInstantiate: 1,
		domain.ActionGetItem:     1,
		domain.ActionRefill:      1,
	}, actions)
}

func TestCLI_BadInput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")

	_, err := runCLI(t, "--db", db, "withdraw", "soda")
	assert.ErrorIs(t, err, domain.ErrUnknownItem)

	_, err = runCLI(t, "--db", db, "init", "--owner", "Bad Owner")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)

	_, err = runCLI(t, "--db", db, "restock", "water", "-1")
	assert.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vendctl "+version+"\n", out)
}

func TestCLI_Remote(t *testing.T) {
	d := service.NewDispatcher(service.NewLedger(storage.NewMemoryStore()), 100)
	go func() {
		for range d.Records() {
		}
	}()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	handler.RegisterVendingServer(srv, handler.NewGRPCHandler(d, nil))
	go srv.Serve(lis)
	t.Cleanup(func() {
		srv.Stop()
		d.Close()
	})
	addr := lis.Addr().String()

	_, err = runCLI(t, "--grpc", addr, "init", "--owner", "owner", "--item", "chips=1")
	require.NoError(t, err)

	out, err := runCLI(t, "--grpc", addr, "--sender", "user", "withdraw", "chips")
	require.NoError(t, err)
	assert.Contains(t, out, "total_amount=0")

	_, err = runCLI(t, "--grpc", addr, "--sender", "user", "withdraw", "chips")
	assert.ErrorContains(t, err, "out_of_stock")

	out, err = runCLI(t, "--grpc", addr, "items")
	require.NoError(t, err)
	assert.Contains(t, out, "chips      0")

	_, err = runCLI(t, "--grpc", addr, "audit")
	assert.ErrorIs(t, err, errAuditRemote)
}
