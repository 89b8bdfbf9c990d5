package solana

import (
	"encoding/json"
	"fmt"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// SystemProgramID is the native transfer program. A simple two-party SOL
// transfer is an instruction against this program with exactly one source and
// one destination account index.
const SystemProgramID = "11111111111111111111111111111111"

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC level failure returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransactionResult is the confirmed view of a transaction as returned by the
// getTransaction RPC. Only the fields the verifier consumes are modelled;
// everything else in the response is ignored at the boundary.
type TransactionResult struct {
	Slot        uint64             `json:"slot"`
	BlockTime   *int64             `json:"blockTime"`
	Meta        *TransactionMeta   `json:"meta"`
	Transaction TransactionPayload `json:"transaction"`
}

// TransactionMeta carries the ledger-recorded effects of the transaction.
// PreBalances/PostBalances are indexed identically to the message account
// keys and are the ground truth for transferred amounts.
type TransactionMeta struct {
	Err          json.RawMessage `json:"err"`
	Fee          uint64          `json:"fee"`
	PreBalances  []int64         `json:"preBalances"`
	PostBalances []int64         `json:"postBalances"`
}

// Failed reports whether the ledger recorded an execution error.
func (m *TransactionMeta) Failed() bool {
	return len(m.Err) > 0 && string(m.Err) != "null"
}

// ErrDetail renders the ledger's error object for user-facing messages.
func (m *TransactionMeta) ErrDetail() string {
	if !m.Failed() {
		return ""
	}
	return string(m.Err)
}

// TransactionPayload is the signed message portion of the transaction.
type TransactionPayload struct {
	Signatures []string `json:"signatures"`
	Message    Message  `json:"message"`
}

// Message holds the account table and the compiled instructions.
type Message struct {
	AccountKeys  []string      `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

// Instruction is a compiled instruction referencing the account table by
// index. Data carries the program-declared payload (base58), which the
// verifier deliberately never uses for amounts: inner instructions can
// reinterpret it, the balance deltas cannot be forged.
type Instruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}
