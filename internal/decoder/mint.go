package decoder

// SPL mint layout.
const (
	MintMinLength         = 82
	mintSupplyOffset      = 36
	mintDecimalsOffset    = 44
	mintInitializedOffset = 45
)

// MintInfo is the decoded content of an SPL mint account.
type MintInfo struct {
	Supply      uint64
	Decimals    uint8
	Initialized bool
}

// DecodeMint decodes an SPL mint account. It is used for display and USD
// valuation only; reserves always come from vault balances.
func DecodeMint(data []byte) (MintInfo, error) {
	if len(data) < MintMinLength {
		return MintInfo{}, newError(KindTooShort, "mint",
			"have %d bytes, want >= %d", len(data), MintMinLength)
	}

	supply, err := readUint(data, mintSupplyOffset, 8)
	if err != nil {
		return MintInfo{}, &DecodeError{Kind: KindMalformed, Field: "mint_supply", Err: err}
	}

	info := MintInfo{
		Supply:      supply,
		Decimals:    data[mintDecimalsOffset],
		Initialized: data[mintInitializedOffset] == 1,
	}
	if !info.Initialized {
		return MintInfo{}, newError(KindMalformed, "mint_state", "mint is not initialized")
	}
	return info, nil
}
