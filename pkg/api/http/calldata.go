package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/powers-protocol/powers/pkg/abicodec"
)

// EncodeRequest lists ABI types and the values to encode under them.
type EncodeRequest struct {
	Types  []string `json:"types"`
	Values []any    `json:"values"`
}

// DecodeRequest is hex call data to decode under Types.
type DecodeRequest struct {
	Types    []string `json:"types"`
	CallData string   `json:"calldata"`
	// Defaults returns zero values instead of an error when the data does
	// not decode.
	Defaults bool `json:"defaults"`
}

// HashRequest identifies an action. Either CallData or Types and Values
// must be set.
type HashRequest struct {
	MandateID uint16   `json:"mandateId"`
	CallData  string   `json:"calldata"`
	Types     []string `json:"types"`
	Values    []any    `json:"values"`
	Nonce     string   `json:"nonce"`
}

// bindNumbers decodes the body keeping numbers as json.Number, so uint256
// values survive without float rounding.
func bindNumbers(c *gin.Context, dst any) error {
	body, err := c.GetRawData()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(dst)
}

func (s *Server) handleEncode(c *gin.Context) {
	var req EncodeRequest
	if err := bindNumbers(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	data, err := abicodec.Encode(req.Types, req.Values)
	if err != nil {
		s.writeError(c, err, http.StatusUnprocessableEntity, "ENCODING_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{"calldata": hexutil.Encode(data)})
}

func (s *Server) handleDecode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	data, err := hexData(req.CallData)
	if err != nil {
		s.writeError(c, err, http.StatusUnprocessableEntity, "ENCODING_ERROR")
		return
	}

	if req.Defaults {
		values, ok := abicodec.DecodeOrDefault(req.Types, data)
		c.JSON(http.StatusOK, gin.H{"values": jsonValues(values), "decoded": ok})
		return
	}
	values, err := abicodec.Decode(req.Types, data)
	if err != nil {
		s.writeError(c, err, http.StatusUnprocessableEntity, "ENCODING_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": jsonValues(values), "decoded": true})
}

// handleHashAction derives the action id a Powers contract will assign to
// a mandate call.
func (s *Server) handleHashAction(c *gin.Context) {
	var req HashRequest
	if err := bindNumbers(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	var data []byte
	var err error
	if req.CallData != "" {
		data, err = hexData(req.CallData)
	} else {
		data, err = abicodec.Encode(req.Types, req.Values)
	}
	if err != nil {
		s.writeError(c, err, http.StatusUnprocessableEntity, "ENCODING_ERROR")
		return
	}

	nonce := new(big.Int)
	if n := strings.TrimSpace(req.Nonce); n != "" {
		var ok bool
		if nonce, ok = new(big.Int).SetString(n, 0); !ok || nonce.Sign() < 0 {
			badRequest(c, fmt.Errorf("invalid nonce: %q", req.Nonce))
			return
		}
	}

	id, err := abicodec.HashAction(req.MandateID, data, nonce)
	if err != nil {
		s.writeError(c, err, http.StatusUnprocessableEntity, "ENCODING_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"actionId": id.String(),
		"calldata": hexutil.Encode(data),
		"nonce":    nonce.String(),
	})
}

func hexData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, &abicodec.EncodingError{Op: "decode", Index: -1, Err: err}
	}
	return data, nil
}

// jsonValues renders decoded ABI values for JSON: integers as decimal
// strings, bytes as hex.
func jsonValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = jsonValue(v)
	}
	return out
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case []byte:
		return hexutil.Encode(x)
	case common.Address:
		return x.Hex()
	case []any:
		return jsonValues(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonValue(e)
		}
		return out
	}
	return v
}
