package transaction

import (
	"math"
	"math/bits"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// PriceScale is the fixed point scale of an exchange price: the number of
// price asset units paid per PriceScale units of the amount asset.
const PriceScale = 100_000_000

// Exchange represents a matched trade between a buyer and a seller,
// submitted and signed by the matcher account. The matcher collects both
// matcher fees and pays the transaction fee.
type Exchange struct {
	head
	BuyerPK        PublicKey
	SellerPK       PublicKey
	AmountAsset    OptionalAsset
	PriceAsset     OptionalAsset
	Price          int64
	Amount         int64
	BuyMatcherFee  int64
	SellMatcherFee int64
}

// NewExchange constructs an exchange transaction, validating every domain
// constraint before the value can exist.
func NewExchange(matcherPK PublicKey, buyerPK PublicKey, sellerPK PublicKey, amountAsset OptionalAsset, priceAsset OptionalAsset, price int64, amount int64, buyMatcherFee int64, sellMatcherFee int64, fee int64, timestamp int64) (*Exchange, error) {
	tx := Exchange{
		BuyerPK:        buyerPK,
		SellerPK:       sellerPK,
		AmountAsset:    amountAsset,
		PriceAsset:     priceAsset,
		Price:          price,
		Amount:         amount,
		BuyMatcherFee:  buyMatcherFee,
		SellMatcherFee: sellMatcherFee,
	}
	tx.SenderPK = matcherPK
	tx.Timestamp = timestamp
	tx.Fee = fee

	if err := tx.domainCheck(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// domainCheck validates the field constraints. Both the constructor and the
// parser run it, so a crafted wire form cannot produce a value the
// constructor would have refused.
func (tx *Exchange) domainCheck() error {
	if tx.Amount <= 0 {
		return &errs.NegativeAmount{Amount: tx.Amount, Unit: tx.AmountAsset.String()}
	}
	if tx.Price <= 0 {
		return &errs.NegativeAmount{Amount: tx.Price, Unit: "price"}
	}
	if tx.BuyMatcherFee < 0 {
		return &errs.NegativeAmount{Amount: tx.BuyMatcherFee, Unit: "buy matcher fee"}
	}
	if tx.SellMatcherFee < 0 {
		return &errs.NegativeAmount{Amount: tx.SellMatcherFee, Unit: "sell matcher fee"}
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	if _, err := priceValue(tx.Price, tx.Amount); err != nil {
		return err
	}
	return nil
}

// PriceValue returns the price asset volume of the trade.
func (tx *Exchange) PriceValue() (int64, error) {
	return priceValue(tx.Price, tx.Amount)
}

// priceValue computes amount*price/PriceScale with a 128 bit intermediate
// product so a large trade fails with a classified overflow instead of
// wrapping.
func priceValue(price int64, amount int64) (int64, error) {
	hi, lo := bits.Mul64(uint64(price), uint64(amount))
	if hi >= PriceScale {
		return 0, errs.NewOverflow("price %d times amount %d overflows", price, amount)
	}

	q, _ := bits.Div64(hi, lo, PriceScale)
	if q > math.MaxInt64 {
		return 0, errs.NewOverflow("price %d times amount %d overflows", price, amount)
	}
	return int64(q), nil
}

// GetType returns the transaction type tag.
func (tx *Exchange) GetType() Type { return TypeExchange }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Exchange) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Exchange) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Exchange) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeExchange))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteBytes(tx.BuyerPK[:])
	w.WriteBytes(tx.SellerPK[:])
	tx.AmountAsset.write(w)
	tx.PriceAsset.write(w)
	w.WriteInt64(tx.Price)
	w.WriteInt64(tx.Amount)
	w.WriteInt64(tx.BuyMatcherFee)
	w.WriteInt64(tx.SellMatcherFee)
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *Exchange) readBody(r *wire.Reader) error {
	for _, pk := range []*PublicKey{&tx.SenderPK, &tx.BuyerPK, &tx.SellerPK} {
		v, err := PublicKeyFromBytes(r.ReadBytes(32))
		if r.Err() == nil && err != nil {
			return err
		}
		*pk = v
	}
	tx.AmountAsset = readOptionalAsset(r)
	tx.PriceAsset = readOptionalAsset(r)
	tx.Price = r.ReadInt64()
	tx.Amount = r.ReadInt64()
	tx.BuyMatcherFee = r.ReadInt64()
	tx.SellMatcherFee = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
