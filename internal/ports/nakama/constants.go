package nakama

// RPC ids registered with Nakama.
const (
	RpcStartMatch   = "start_match"
	RpcStake        = "stake"
	RpcPlayMove     = "play_move"
	RpcDrawCard     = "draw_card"
	RpcRecordResult = "record_result"
	RpcPurchase     = "purchase"
	RpcMatchStatus  = "match_status"
	RpcBalance      = "balance"
	RpcLinkAddress  = "link_address"
)

// MatchNameUno is the authoritative match handler name registered with Nakama.
const MatchNameUno = "uno_match"

// Match params and label keys.
const (
	MatchParamMatchID = "match_id"
	MatchLabelKeyOpen = "open"
)

// Op codes for realtime messages.
const (
	// Client -> Server
	OpStake    int64 = 1
	OpPlayCard int64 = 2
	OpDrawCard int64 = 3

	// Server -> Client
	OpMatchState int64 = 101
	OpHand       int64 = 102 // sent privately
	OpGameError  int64 = 103
)

// Storage and wallet names.
const (
	addressCollection = "ledger_address"
	addressKey        = "primary"
	walletCurrency    = "uno"
)
