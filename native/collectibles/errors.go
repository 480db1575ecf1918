package collectibles

import "errors"

// Token-layer rejections. The messages mirror the reference token contracts
// so callers see the collection's own reason.
var (
	ErrERC721NotApproved      = errors.New("ERC721: caller is not token owner nor approved")
	ErrERC721InvalidToken     = errors.New("ERC721: invalid token ID")
	ErrERC721IncorrectOwner   = errors.New("ERC721: transfer from incorrect owner")
	ErrERC721ZeroAddress      = errors.New("ERC721: transfer to the zero address")
	ErrERC721ApproveToCaller  = errors.New("ERC721: approve to caller")
	ErrERC1155NotApproved     = errors.New("ERC1155: caller is not token owner nor approved")
	ErrERC1155InsufficientBal = errors.New("ERC1155: insufficient balance for transfer")
	ErrERC1155ZeroAddress     = errors.New("ERC1155: transfer to the zero address")
	ErrERC20InsufficientAllow = errors.New("ERC20: insufficient allowance")
	ErrERC20InsufficientBal   = errors.New("ERC20: transfer amount exceeds balance")
	ErrERC20ZeroAddress       = errors.New("ERC20: transfer to the zero address")
)
