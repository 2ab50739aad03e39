package hyperliquid

// Perp universe entry, from the /info "meta" response.
type PerpAsset struct {
	Name         string `json:"name"`
	SizeDecimals int    `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated"`
}

type Meta struct {
	Universe []PerpAsset `json:"universe"`
}

// Spot universe entry, from the /info "spotMeta" response. Name is the pair
// ("PURR/USDC"); Index feeds the 10000+index spot asset id convention.
type SpotPair struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Tokens []int  `json:"tokens"`
}

type SpotMeta struct {
	Universe []SpotPair `json:"universe"`
}

// Per-asset context from "metaAndAssetCtxs". Numeric fields arrive as strings.
type AssetCtx struct {
	Funding      string `json:"funding"` // hourly rate, e.g. "0.0000125"
	MarkPx       string `json:"markPx"`
	MidPx        string `json:"midPx"`
	OraclePx     string `json:"oraclePx"`
	OpenInterest string `json:"openInterest"`
	DayNtlVlm    string `json:"dayNtlVlm"`
}

type TimeInForce string

const (
	TifGtc TimeInForce = "Gtc"
	TifIoc TimeInForce = "Ioc"
	TifAlo TimeInForce = "Alo"
)

// OrderRequest is one limit order against a perp or spot asset id.
type OrderRequest struct {
	AssetID    int
	IsBuy      bool
	Price      string // decimal string, exchange-side precision rules apply
	Size       string
	ReduceOnly bool
	Tif        TimeInForce
	Cloid      string // 0x-prefixed 16-byte hex client order id
}

// Wire form of an order inside an exchange action.
type wireOrder struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       wireOrderType `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

type wireOrderType struct {
	Limit wireLimit `json:"limit"`
}

type wireLimit struct {
	Tif TimeInForce `json:"tif"`
}

type orderAction struct {
	Type     string      `json:"type"`
	Orders   []wireOrder `json:"orders"`
	Grouping string      `json:"grouping"`
}

type wireCancel struct {
	Asset int    `json:"asset"`
	Cloid string `json:"cloid"`
}

type cancelAction struct {
	Type    string       `json:"type"`
	Cancels []wireCancel `json:"cancels"`
}

type exchangeEnvelope struct {
	Action       any        `json:"action"`
	Nonce        int64      `json:"nonce"`
	Signature    *Signature `json:"signature"`
	VaultAddress *string    `json:"vaultAddress"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type orderStatus struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

// OrderResult is the parsed outcome of one placed order.
type OrderResult struct {
	OrderID    int64
	Cloid      string
	Filled     bool
	FilledSize string
	AvgPrice   string
}
