package token

import (
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Memory is an in-process fungible token with standard balance, allowance,
// mint, and burn semantics. It backs local deployments and tests; in a real
// deployment the engine would be wired to on-chain token adapters instead.
//
// Caller identity is modeled explicitly: Bind returns a Session acting as a
// specific account, and Session implements the token interfaces.
type Memory struct {
	mu         sync.Mutex
	symbol     string
	authority  uuid.UUID
	balances   map[uuid.UUID]*uint256.Int
	allowances map[uuid.UUID]map[uuid.UUID]*uint256.Int
}

// NewMemory creates a token. Only authority may mint.
func NewMemory(symbol string, authority uuid.UUID) *Memory {
	return &Memory{
		symbol:     symbol,
		authority:  authority,
		balances:   make(map[uuid.UUID]*uint256.Int),
		allowances: make(map[uuid.UUID]map[uuid.UUID]*uint256.Int),
	}
}

func (m *Memory) Symbol() string { return m.symbol }

// Bind returns a view of the token acting as account.
func (m *Memory) Bind(account uuid.UUID) *Session {
	return &Session{token: m, account: account}
}

func (m *Memory) balanceOf(account uuid.UUID) *uint256.Int {
	bal, ok := m.balances[account]
	if !ok {
		return new(uint256.Int)
	}
	return bal.Clone()
}

func (m *Memory) credit(account uuid.UUID, amount *uint256.Int) {
	bal, ok := m.balances[account]
	if !ok {
		bal = new(uint256.Int)
		m.balances[account] = bal
	}
	bal.Add(bal, amount)
}

func (m *Memory) debit(account uuid.UUID, amount *uint256.Int) bool {
	bal, ok := m.balances[account]
	if !ok || bal.Lt(amount) {
		return false
	}
	bal.Sub(bal, amount)
	return true
}

func (m *Memory) allowance(owner, spender uuid.UUID) *uint256.Int {
	spenders, ok := m.allowances[owner]
	if !ok {
		return new(uint256.Int)
	}
	a, ok := spenders[spender]
	if !ok {
		return new(uint256.Int)
	}
	return a
}

// Session is a Memory token bound to a caller account. It implements
// CollateralToken and DebtToken.
type Session struct {
	token   *Memory
	account uuid.UUID
}

func (s *Session) Account() uuid.UUID { return s.account }

func (s *Session) Transfer(to uuid.UUID, amount *uint256.Int) bool {
	s.token.mu.Lock()
	defer s.token.mu.Unlock()

	if !s.token.debit(s.account, amount) {
		return false
	}
	s.token.credit(to, amount)
	return true
}

func (s *Session) TransferFrom(from, to uuid.UUID, amount *uint256.Int) bool {
	s.token.mu.Lock()
	defer s.token.mu.Unlock()

	if from != s.account {
		allowed := s.token.allowance(from, s.account)
		if allowed.Lt(amount) {
			return false
		}
		allowed.Sub(allowed, amount)
	}

	if !s.token.debit(from, amount) {
		return false
	}
	s.token.credit(to, amount)
	return true
}

func (s *Session) BalanceOf(account uuid.UUID) *uint256.Int {
	s.token.mu.Lock()
	defer s.token.mu.Unlock()
	return s.token.balanceOf(account)
}

func (s *Session) Mint(to uuid.UUID, amount *uint256.Int) bool {
	s.token.mu.Lock()
	defer s.token.mu.Unlock()

	if s.account != s.token.authority {
		return false
	}
	s.token.credit(to, amount)
	return true
}

func (s *Session) Burn(amount *uint256.Int) bool {
	s.token.mu.Lock()
	defer s.token.mu.Unlock()
	return s.token.debit(s.account, amount)
}

func (s *Session) Approve(spender uuid.UUID, amount *uint256.Int) bool {
	s.token.mu.Lock()
	defer s.token.mu.Unlock()

	spenders, ok := s.token.allowances[s.account]
	if !ok {
		spenders = make(map[uuid.UUID]*uint256.Int)
		s.token.allowances[s.account] = spenders
	}
	spenders[spender] = amount.Clone()
	return true
}
