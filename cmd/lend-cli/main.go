package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"nftlend/crypto"
)

var (
	rpcEndpoint  = defaultRPCEndpoint()
	rpcAuthToken = os.Getenv("LEND_RPC_TOKEN")
)

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	rest := args[1:]
	switch command {
	case "generate-key":
		err = generateKey(rest)
	case "register-mint":
		err = registerMint(rest)
	case "mint":
		err = mintTokens(rest)
	case "balance":
		err = getBalance(rest)
	case "init":
		err = initializePool(rest)
	case "deposit":
		err = deposit(rest)
	case "withdraw":
		err = withdraw(rest)
	case "bid":
		err = placeBid(rest)
	case "cancel-bid":
		err = cancelBid(rest)
	case "borrow":
		err = borrow(rest)
	case "repay":
		err = repay(rest)
	case "liquidate":
		err = liquidate(rest)
	case "pool":
		err = showPool()
	case "listing":
		err = showListing(rest)
	case "bid-of":
		err = showBid(rest)
	case "loan":
		err = showLoan(rest)
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: lend-cli [--rpc <url>] <command> [flags]

Keys and assets:
  generate-key --out <file>
  register-mint --mint <addr> --authority <addr> --decimals <n>
  mint --mint <addr> --authority <addr> --to <addr> --amount <n>
  balance --mint <addr> --owner <addr>

Pool:
  init --caller <addr> --reward <mint> --currency <mint> --settlement <mint>
  pool

Collateral:
  deposit --owner <addr> --mint <addr> --reward <mint> --count <n>
  withdraw --owner <addr> --mint <addr> --count <n>
  listing --owner <addr> --mint <addr>

Bids:
  bid --lender <addr> --mint <addr> --price <n> --qty <n>
  cancel-bid --lender <addr> --mint <addr> [--revoke]
  bid-of --lender <addr> --mint <addr>

Loans:
  borrow --borrower <addr> --lender <addr> --mint <addr> --loan-id <hex> --amount <n>
  repay --borrower <addr> --lender <addr> --mint <addr> --loan-id <hex>
  liquidate --borrower <addr> --lender <addr> --mint <addr> --loan-id <hex>
  loan --borrower <addr> --lender <addr> --mint <addr> --loan-id <hex>

The RPC endpoint comes from RPC_URL or --rpc; mutating commands send the
bearer token from LEND_RPC_TOKEN.`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	} `json:"error"`
}

func sendRequest(method string, params interface{}) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed := &rpcResponse{}
	if err := json.Unmarshal(raw, parsed); err != nil {
		return nil, fmt.Errorf("invalid RPC response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s (code %d)", parsed.Error.Message, parsed.Error.Code)
	}
	return parsed.Result, nil
}

func printResult(result json.RawMessage) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func runMethod(method string, params interface{}) error {
	result, err := sendRequest(method, params)
	if err != nil {
		return err
	}
	return printResult(result)
}

func generateKey(args []string) error {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	out := fs.String("out", "wallet.key", "File to write the private key to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	encoded := hex.EncodeToString(key.Bytes())
	if err := os.WriteFile(*out, []byte(encoded), 0o600); err != nil {
		return err
	}
	fmt.Println("address:", key.PubKey().Address().String())
	fmt.Println("key file:", *out)
	return nil
}

func registerMint(args []string) error {
	fs := flag.NewFlagSet("register-mint", flag.ContinueOnError)
	mint := fs.String("mint", "", "Mint address")
	authority := fs.String("authority", "", "Mint authority address")
	decimals := fs.Uint("decimals", 0, "Mint decimals (0 for collateral classes)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("token_registerMint", map[string]interface{}{
		"mint": *mint, "authority": *authority, "decimals": *decimals,
	})
}

func mintTokens(args []string) error {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	mint := fs.String("mint", "", "Mint address")
	authority := fs.String("authority", "", "Mint authority address")
	to := fs.String("to", "", "Recipient address")
	amount := fs.Uint64("amount", 0, "Base units to issue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("token_mint", map[string]interface{}{
		"mint": *mint, "authority": *authority, "to": *to, "amount": *amount,
	})
}

func getBalance(args []string) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	mint := fs.String("mint", "", "Mint address")
	owner := fs.String("owner", "", "Holder address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("token_getBalance", map[string]interface{}{
		"mint": *mint, "owner": *owner,
	})
}

func initializePool(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	caller := fs.String("caller", "", "Pool owner address")
	reward := fs.String("reward", "", "Reward mint address")
	currency := fs.String("currency", "", "Loan currency mint address")
	settlement := fs.String("settlement", "", "Settlement mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_initializePool", map[string]interface{}{
		"caller": *caller, "rewardMint": *reward,
		"currencyMint": *currency, "settlementMint": *settlement,
	})
}

func deposit(args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	owner := fs.String("owner", "", "Collateral owner address")
	mint := fs.String("mint", "", "Collateral mint address")
	reward := fs.String("reward", "", "Reward mint address")
	count := fs.Uint64("count", 0, "Units to deposit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_deposit", map[string]interface{}{
		"owner": *owner, "mint": *mint, "rewardMint": *reward, "count": *count,
	})
}

func withdraw(args []string) error {
	fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	owner := fs.String("owner", "", "Collateral owner address")
	mint := fs.String("mint", "", "Collateral mint address")
	count := fs.Uint64("count", 0, "Units to withdraw")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_withdraw", map[string]interface{}{
		"owner": *owner, "mint": *mint, "count": *count,
	})
}

func placeBid(args []string) error {
	fs := flag.NewFlagSet("bid", flag.ContinueOnError)
	lender := fs.String("lender", "", "Lender address")
	mint := fs.String("mint", "", "Collateral mint address")
	price := fs.Uint64("price", 0, "Currency base units per collateral unit")
	qty := fs.Uint64("qty", 0, "Units the bid covers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_placeBid", map[string]interface{}{
		"lender": *lender, "mint": *mint, "price": *price, "qty": *qty,
	})
}

func cancelBid(args []string) error {
	fs := flag.NewFlagSet("cancel-bid", flag.ContinueOnError)
	lender := fs.String("lender", "", "Lender address")
	mint := fs.String("mint", "", "Collateral mint address")
	revoke := fs.Bool("revoke", false, "Also revoke the currency delegation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_cancelBid", map[string]interface{}{
		"lender": *lender, "mint": *mint, "revoke": *revoke,
	})
}

func loanFlags(fs *flag.FlagSet) (borrower, lender, mint, loanID *string) {
	borrower = fs.String("borrower", "", "Borrower address")
	lender = fs.String("lender", "", "Lender address")
	mint = fs.String("mint", "", "Collateral mint address")
	loanID = fs.String("loan-id", "", "32-byte loan id, hex encoded")
	return
}

func borrow(args []string) error {
	fs := flag.NewFlagSet("borrow", flag.ContinueOnError)
	borrower, lender, mint, loanID := loanFlags(fs)
	amount := fs.Uint64("amount", 0, "Currency base units to borrow")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_borrow", map[string]interface{}{
		"borrower": *borrower, "lender": *lender, "mint": *mint,
		"loanId": *loanID, "amount": *amount,
	})
}

func repay(args []string) error {
	fs := flag.NewFlagSet("repay", flag.ContinueOnError)
	borrower, lender, mint, loanID := loanFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_repay", map[string]interface{}{
		"borrower": *borrower, "lender": *lender, "mint": *mint, "loanId": *loanID,
	})
}

func liquidate(args []string) error {
	fs := flag.NewFlagSet("liquidate", flag.ContinueOnError)
	borrower, lender, mint, loanID := loanFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_liquidate", map[string]interface{}{
		"borrower": *borrower, "lender": *lender, "mint": *mint, "loanId": *loanID,
	})
}

func showPool() error {
	return runMethod("lend_getPool", nil)
}

func showListing(args []string) error {
	fs := flag.NewFlagSet("listing", flag.ContinueOnError)
	owner := fs.String("owner", "", "Collateral owner address")
	mint := fs.String("mint", "", "Collateral mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_getListing", map[string]interface{}{
		"owner": *owner, "mint": *mint,
	})
}

func showBid(args []string) error {
	fs := flag.NewFlagSet("bid-of", flag.ContinueOnError)
	lender := fs.String("lender", "", "Lender address")
	mint := fs.String("mint", "", "Collateral mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_getBid", map[string]interface{}{
		"lender": *lender, "mint": *mint,
	})
}

func showLoan(args []string) error {
	fs := flag.NewFlagSet("loan", flag.ContinueOnError)
	borrower, lender, mint, loanID := loanFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runMethod("lend_getLoan", map[string]interface{}{
		"borrower": *borrower, "lender": *lender, "mint": *mint, "loanId": *loanID,
	})
}
