package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/spf13/cobra"
)

var calldataCmd = &cobra.Command{
	Use:   "calldata",
	Short: "Encode and decode mandate call data",
}

var encodeCmd = &cobra.Command{
	Use:   "encode VALUE...",
	Short: "ABI-encode values under --types",
	Example: `  powers calldata encode --types address,uint256 0x00000000000000000000000000000000000000a1 1000
  powers calldata encode --types 'address[]' '["0x0000000000000000000000000000000000000001"]'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		types := splitTypes(cmd.Flag("types").Value.String())
		values := make([]any, len(args))
		for i, a := range args {
			values[i] = cliValue(a)
		}
		data, err := abicodec.Encode(types, values)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(data))
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode CALLDATA",
	Short: "Decode hex call data under --types",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types := splitTypes(cmd.Flag("types").Value.String())
		data, err := hexutil.Decode(ensure0x(args[0]))
		if err != nil {
			return fmt.Errorf("invalid call data: %w", err)
		}
		values, err := abicodec.Decode(types, data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, v := range values {
			fmt.Fprintf(out, "%s: %s\n", types[i], formatValue(v))
		}
		return nil
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash CALLDATA",
	Short: "Print the action id of a mandate call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mandateID, _ := cmd.Flags().GetUint16("mandate")
		nonceFlag, _ := cmd.Flags().GetString("nonce")

		data, err := hexutil.Decode(ensure0x(args[0]))
		if err != nil {
			return fmt.Errorf("invalid call data: %w", err)
		}
		nonce, ok := new(big.Int).SetString(nonceFlag, 0)
		if !ok || nonce.Sign() < 0 {
			return fmt.Errorf("invalid nonce: %q", nonceFlag)
		}
		id, err := abicodec.HashAction(mandateID, data, nonce)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.String())
		return nil
	},
}

func init() {
	encodeCmd.Flags().String("types", "", "comma separated ABI types")
	decodeCmd.Flags().String("types", "", "comma separated ABI types")
	_ = encodeCmd.MarkFlagRequired("types")
	_ = decodeCmd.MarkFlagRequired("types")

	hashCmd.Flags().Uint16("mandate", 0, "mandate id")
	hashCmd.Flags().String("nonce", "0", "action nonce, decimal or 0x hex")
	_ = hashCmd.MarkFlagRequired("mandate")

	calldataCmd.AddCommand(encodeCmd, decodeCmd, hashCmd)
	rootCmd.AddCommand(calldataCmd)
}

// cliValue turns a JSON-looking argument into a list so array types can be
// given on the command line. Everything else stays a string.
func cliValue(arg string) any {
	s := strings.TrimSpace(arg)
	if !strings.HasPrefix(s, "[") {
		return arg
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var list []any
	if err := dec.Decode(&list); err != nil {
		return arg
	}
	return list
}

// splitTypes splits a type list on commas outside tuple parentheses.
func splitTypes(list string) []string {
	var (
		types []string
		depth int
		start int
	)
	for i, r := range list {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				types = append(types, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(list[start:]); last != "" || len(types) > 0 {
		types = append(types, last)
	}
	return types
}

func formatValue(v any) string {
	switch x := v.(type) {
	case []byte:
		return hexutil.Encode(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

func ensure0x(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
