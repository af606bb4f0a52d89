package commands

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/radieske/crylot/internal/shared/callerauth"
)

// apiCtx carrega o endereço da API e o chamador de um comando. Com key as
// requisições saem assinadas para o api-gateway.
type apiCtx struct {
	base   string
	caller string
	key    *ecdsa.PrivateKey
	http   *http.Client
}

func newAPICtx(cmd *cobra.Command) (apiCtx, error) {
	base, _ := cmd.Flags().GetString("api")
	from, _ := cmd.Flags().GetString("from")
	a := apiCtx{base: strings.TrimRight(base, "/"), caller: from, http: &http.Client{Timeout: 10 * time.Second}}
	key, err := signingKey(cmd)
	if err != nil || key == nil {
		return a, err
	}
	a.key = key
	a.caller = crypto.PubkeyToAddress(key.PublicKey).Hex()
	return a, nil
}

func signingKey(cmd *cobra.Command) (*ecdsa.PrivateKey, error) {
	hexKey, _ := cmd.Flags().GetString("key")
	if hexKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "--key")
	}
	return key, nil
}

// call faz a requisição e imprime o JSON de resposta indentado. Status >= 400
// vira erro com a mensagem da API.
func (a apiCtx) call(cmd *cobra.Command, method, path string, body any) error {
	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		raw = b
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case a.key != nil:
		if err := callerauth.Sign(req, a.key, raw, time.Now()); err != nil {
			return err
		}
	case a.caller != "":
		req.Header.Set(callerauth.AddressHeader, a.caller)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "crylot api")
	}
	defer resp.Body.Close()
	raw, _ = io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return errors.Errorf("%s (%s, http %d)", e.Error, e.Kind, resp.StatusCode)
		}
		return errors.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(pretty.String()))
	return err
}
