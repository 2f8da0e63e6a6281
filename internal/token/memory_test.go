package token_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SynthVault/internal/token"
)

func TestMemory_MintRequiresAuthority(t *testing.T) {
	authority := uuid.New()
	mem := token.NewMemory("WETH", authority)
	user := uuid.New()

	if mem.Bind(uuid.New()).Mint(user, uint256.NewInt(100)) {
		t.Error("mint from non-authority should be refused")
	}
	if !mem.Bind(authority).Mint(user, uint256.NewInt(100)) {
		t.Fatal("mint from authority refused")
	}
	if got := mem.Bind(user).BalanceOf(user); !got.Eq(uint256.NewInt(100)) {
		t.Errorf("balance after mint: got %s", got.Dec())
	}
}

func TestMemory_Transfer(t *testing.T) {
	authority := uuid.New()
	mem := token.NewMemory("WETH", authority)
	alice, bob := uuid.New(), uuid.New()
	mem.Bind(authority).Mint(alice, uint256.NewInt(100))

	if !mem.Bind(alice).Transfer(bob, uint256.NewInt(40)) {
		t.Fatal("transfer refused")
	}
	if got := mem.Bind(alice).BalanceOf(alice); !got.Eq(uint256.NewInt(60)) {
		t.Errorf("alice: got %s", got.Dec())
	}
	if got := mem.Bind(bob).BalanceOf(bob); !got.Eq(uint256.NewInt(40)) {
		t.Errorf("bob: got %s", got.Dec())
	}

	if mem.Bind(alice).Transfer(bob, uint256.NewInt(61)) {
		t.Error("transfer exceeding balance should be refused")
	}
}

func TestMemory_TransferFromOwnAccount(t *testing.T) {
	authority := uuid.New()
	mem := token.NewMemory("WETH", authority)
	alice, vault := uuid.New(), uuid.New()
	mem.Bind(authority).Mint(alice, uint256.NewInt(100))

	// Moving your own funds needs no allowance.
	if !mem.Bind(alice).TransferFrom(alice, vault, uint256.NewInt(30)) {
		t.Fatal("self transferFrom refused")
	}
}

func TestMemory_TransferFromRequiresAllowance(t *testing.T) {
	authority := uuid.New()
	mem := token.NewMemory("WETH", authority)
	alice, spender, vault := uuid.New(), uuid.New(), uuid.New()
	mem.Bind(authority).Mint(alice, uint256.NewInt(100))

	if mem.Bind(spender).TransferFrom(alice, vault, uint256.NewInt(10)) {
		t.Error("transferFrom without allowance should be refused")
	}

	mem.Bind(alice).Approve(spender, uint256.NewInt(50))

	if !mem.Bind(spender).TransferFrom(alice, vault, uint256.NewInt(30)) {
		t.Fatal("transferFrom within allowance refused")
	}
	// Allowance is consumed: 20 left, 30 should fail.
	if mem.Bind(spender).TransferFrom(alice, vault, uint256.NewInt(30)) {
		t.Error("transferFrom exceeding remaining allowance should be refused")
	}
	if !mem.Bind(spender).TransferFrom(alice, vault, uint256.NewInt(20)) {
		t.Error("transferFrom of remaining allowance refused")
	}
}

func TestMemory_Burn(t *testing.T) {
	authority := uuid.New()
	mem := token.NewMemory("sUSD", authority)
	mem.Bind(authority).Mint(authority, uint256.NewInt(100))

	if !mem.Bind(authority).Burn(uint256.NewInt(60)) {
		t.Fatal("burn refused")
	}
	if got := mem.Bind(authority).BalanceOf(authority); !got.Eq(uint256.NewInt(40)) {
		t.Errorf("after burn: got %s", got.Dec())
	}
	if mem.Bind(authority).Burn(uint256.NewInt(41)) {
		t.Error("burn exceeding balance should be refused")
	}
}
