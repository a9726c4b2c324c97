package market

import (
	"math/big"

	"nftickets/crypto"
	"nftickets/native/assets"
)

// authority is the capability to move a listing's vault. It only exists after
// the engine has re-derived the listing address from its seeds and stored
// bump, so no caller-supplied value can stand in for it.
type authority struct {
	listing [20]byte
	vault   [20]byte
	asset   [20]byte
}

func (e *Engine) authorize(platformAddr [20]byte, listing *Listing) (authority, error) {
	expected, _, err := ListingAddress(platformAddr, listing.AssetID)
	if err != nil {
		return authority{}, err
	}
	derived, err := crypto.CreateProgramAddress([][]byte{platformAddr[:], listing.AssetID[:]}, listing.Bump)
	if err != nil || derived != expected {
		return authority{}, ErrUnauthorized
	}
	vault, err := assets.AssociatedAddress(derived, listing.AssetID)
	if err != nil {
		return authority{}, err
	}
	return authority{listing: derived, vault: vault, asset: listing.AssetID}, nil
}

// checkVault enforces that the vault holds exactly one unit of the asset.
func (a authority) checkVault(e *Engine) error {
	acct, err := e.assets.Account(a.vault)
	if err != nil {
		return ErrVaultInvariant
	}
	if acct.Owner != a.listing || acct.Mint != a.asset || acct.Amount != 1 {
		return ErrVaultInvariant
	}
	return nil
}

// release moves the escrowed unit to destination.
func (a authority) release(e *Engine, destination [20]byte) error {
	mint, err := e.assets.Mint(a.asset)
	if err != nil {
		return err
	}
	return e.assets.TransferChecked(a.vault, destination, a.listing, a.asset, 1, mint.Decimals)
}

// close closes the empty vault and the listing record, returning both storage
// deposits to recipient.
func (a authority) close(e *Engine, recipient [20]byte) (vaultRent, listingRent *big.Int, err error) {
	vaultRent, err = e.assets.CloseAccount(a.vault, recipient, a.listing)
	if err != nil {
		return nil, nil, err
	}
	listingRent, err = e.state.CloseRecord(a.listing, Program, recipient)
	if err != nil {
		return nil, nil, err
	}
	return vaultRent, listingRent, nil
}
