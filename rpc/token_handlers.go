package rpc

import (
	"encoding/json"
	"errors"

	"nftlend/storage"
	"nftlend/token"
)

func tokenError(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrMintUnknown),
		errors.Is(err, token.ErrMintExists),
		errors.Is(err, token.ErrAccountUnknown),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrSupplyOverflow),
		errors.Is(err, token.ErrNotMintAuthority),
		errors.Is(err, token.ErrNotAuthorized):
		return &RPCError{Code: codeStateError, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
	}
}

type registerMintParams struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
}

func handleRegisterMint(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p registerMintParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := decodeAddr("authority", p.Authority)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := token.New(db).RegisterMint(mint, authority, p.Decimals); err != nil {
		return nil, tokenError(err)
	}
	return map[string]string{"mint": mint.String()}, nil
}

type mintToParams struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
}

func handleMintTo(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p mintToParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := decodeAddr("authority", p.Authority)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := decodeAddr("to", p.To)
	if rpcErr != nil {
		return nil, rpcErr
	}

	tokens := token.New(db)
	if err := tokens.MintTo(mint, authority, to, p.Amount); err != nil {
		return nil, tokenError(err)
	}
	balance, err := tokens.BalanceOf(mint, to)
	if err != nil {
		return nil, tokenError(err)
	}
	return map[string]interface{}{"mint": mint.String(), "owner": to.String(), "balance": balance}, nil
}

type balanceParams struct {
	Mint  string `json:"mint"`
	Owner string `json:"owner"`
}

func handleGetBalance(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p balanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := decodeAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}

	balance, err := token.New(db).BalanceOf(mint, owner)
	if err != nil {
		return nil, tokenError(err)
	}
	return map[string]interface{}{"mint": mint.String(), "owner": owner.String(), "balance": balance}, nil
}
