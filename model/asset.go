/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const MaxPrecision = 18

var (
	ErrSymbolMismatch = errors.New("attempt to operate on assets with different symbols")
	ErrAssetOverflow  = errors.New("asset amount overflow")
)

// Symbol identifies a token by its code and the number of decimal places its
// integer amounts carry.
type Symbol struct {
	Code      string `json:"code"`
	Precision uint8  `json:"precision"`
}

func NewSymbol(code string, precision uint8) (Symbol, error) {
	s := Symbol{Code: code, Precision: precision}
	if !s.IsValid() {
		return Symbol{}, fmt.Errorf("invalid symbol %s", s)
	}
	return s, nil
}

func (s Symbol) IsValid() bool {
	if len(s.Code) == 0 || len(s.Code) > 7 || s.Precision > MaxPrecision {
		return false
	}
	for _, c := range s.Code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// String renders the symbol as "precision,CODE".
func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

func ParseSymbol(raw string) (Symbol, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ",", 2)
	if len(parts) != 2 {
		return Symbol{}, fmt.Errorf("invalid symbol %q", raw)
	}
	p, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Symbol{}, fmt.Errorf("invalid symbol precision %q", parts[0])
	}
	return NewSymbol(parts[1], uint8(p))
}

// Asset is an integer amount of minor units of a token.
type Asset struct {
	Amount int64  `json:"amount"`
	Symbol Symbol `json:"symbol"`
}

func NewAsset(amount int64, symbol Symbol) Asset {
	return Asset{Amount: amount, Symbol: symbol}
}

func (a Asset) IsValid() bool {
	return a.Symbol.IsValid()
}

// Decimal returns the amount in major units.
func (a Asset) Decimal() decimal.Decimal {
	return decimal.New(a.Amount, -int32(a.Symbol.Precision))
}

// String renders the asset as "1.2345 TOK".
func (a Asset) String() string {
	return a.Decimal().StringFixed(int32(a.Symbol.Precision)) + " " + a.Symbol.Code
}

// ParseAsset parses "1.2345 TOK". The precision is the number of digits after
// the decimal point.
func ParseAsset(raw string) (Asset, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Asset{}, fmt.Errorf("invalid asset %q", raw)
	}
	amount, code := fields[0], fields[1]

	var precision uint8
	if dot := strings.IndexByte(amount, '.'); dot >= 0 {
		if len(amount)-dot-1 > MaxPrecision {
			return Asset{}, fmt.Errorf("invalid asset %q: precision too high", raw)
		}
		precision = uint8(len(amount) - dot - 1)
	}
	symbol, err := NewSymbol(code, precision)
	if err != nil {
		return Asset{}, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Asset{}, fmt.Errorf("invalid asset %q: %w", raw, err)
	}
	minor := d.Shift(int32(precision))
	if !minor.BigInt().IsInt64() {
		return Asset{}, ErrAssetOverflow
	}
	return Asset{Amount: minor.IntPart(), Symbol: symbol}, nil
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAsset(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Asset) Add(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, ErrSymbolMismatch
	}
	if (b.Amount > 0 && a.Amount > math.MaxInt64-b.Amount) || (b.Amount < 0 && a.Amount < math.MinInt64-b.Amount) {
		return Asset{}, ErrAssetOverflow
	}
	return Asset{Amount: a.Amount + b.Amount, Symbol: a.Symbol}, nil
}

func (a Asset) Sub(b Asset) (Asset, error) {
	if b.Amount == math.MinInt64 {
		return Asset{}, ErrAssetOverflow
	}
	return a.Add(Asset{Amount: -b.Amount, Symbol: b.Symbol})
}

// Convert re-denominates a into symbol. Amounts are rescaled when the
// precisions differ; extra digits are truncated.
func (a Asset) Convert(symbol Symbol) (Asset, error) {
	if a.Symbol.Precision == symbol.Precision {
		return Asset{Amount: a.Amount, Symbol: symbol}, nil
	}
	minor := a.Decimal().Shift(int32(symbol.Precision)).Truncate(0)
	if !minor.BigInt().IsInt64() {
		return Asset{}, ErrAssetOverflow
	}
	return Asset{Amount: minor.IntPart(), Symbol: symbol}, nil
}
