package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SWAN-community/owid/internal/http/middlewares"
)

type client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("OWID_URL", "http://localhost:8080")
		secret  = envOr("ADMIN_JWT_SECRET", "")
	)

	cl := &client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:   "owid-cli",
		Short: "CLI para el servicio OWID (signer, sign, verify, admin)",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env OWID_URL)")
	root.PersistentFlags().StringVar(&secret, "admin-secret", secret, "secreto JWT admin (env ADMIN_JWT_SECRET)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cl.BaseURL = baseURL
		return nil
	}

	// signer <domain>: trae el JSON público del signer
	signerCmd := &cobra.Command{
		Use:   "signer <domain>",
		Short: "Trae el JSON público del signer de un dominio hosteado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/owid/api/v1/signer?domain="+args[0], nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	// sign
	var signDomain, signPayload string
	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Firma un payload con el signer hosteado del dominio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if signDomain == "" || signPayload == "" {
				return fmt.Errorf("faltan --domain y/o --payload")
			}
			req, _ := json.Marshal(map[string]string{
				"domain":  signDomain,
				"payload": base64.StdEncoding.EncodeToString([]byte(signPayload)),
			})
			status, body, err := cl.do("POST", "/owid/api/v1/sign", req)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	signCmd.Flags().StringVar(&signDomain, "domain", "", "dominio del signer")
	signCmd.Flags().StringVar(&signPayload, "payload", "", "payload en texto plano")

	// verify
	var verifyOwid, verifyPayload string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verifica un OWID recibido contra su payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verifyOwid == "" {
				return fmt.Errorf("falta --owid")
			}
			req, _ := json.Marshal(map[string]string{
				"owid":    verifyOwid,
				"payload": base64.StdEncoding.EncodeToString([]byte(verifyPayload)),
			})
			status, body, err := cl.do("POST", "/owid/api/v1/verify", req)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&verifyOwid, "owid", "", "OWID en base64")
	verifyCmd.Flags().StringVar(&verifyPayload, "payload", "", "payload en texto plano")

	// grupo admin
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Operaciones administrativas (requiere ADMIN_JWT_SECRET)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Este hook reemplaza al del root: repetir el wiring de base URL.
			cl.BaseURL = baseURL
			if secret == "" {
				return fmt.Errorf("falta admin secret (flag --admin-secret o env ADMIN_JWT_SECRET)")
			}
			tok, err := middlewares.IssueAdminToken(secret, 5*time.Minute)
			if err != nil {
				return err
			}
			cl.Token = tok
			return nil
		},
	}

	var regDomain, regName, regEmail, regTerms string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Da de alta un signer nuevo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if regDomain == "" {
				return fmt.Errorf("falta --domain")
			}
			req, _ := json.Marshal(map[string]string{
				"domain":   regDomain,
				"name":     regName,
				"email":    regEmail,
				"termsURL": regTerms,
			})
			status, body, err := cl.do("POST", "/owid/api/v1/admin/signer", req)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	registerCmd.Flags().StringVar(&regDomain, "domain", "", "dominio del signer")
	registerCmd.Flags().StringVar(&regName, "name", "", "nombre legible")
	registerCmd.Flags().StringVar(&regEmail, "email", "", "contacto")
	registerCmd.Flags().StringVar(&regTerms, "terms", "", "URL de términos")

	var rotDomain string
	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rota la clave de firma del dominio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rotDomain == "" {
				return fmt.Errorf("falta --domain")
			}
			req, _ := json.Marshal(map[string]string{"domain": rotDomain})
			status, body, err := cl.do("POST", "/owid/api/v1/admin/rotate", req)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	rotateCmd.Flags().StringVar(&rotDomain, "domain", "", "dominio del signer")

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un token admin para usar con curl",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(cl.Token)
			return nil
		},
	}

	adminCmd.AddCommand(registerCmd, rotateCmd, tokenCmd)
	root.AddCommand(signerCmd, signCmd, verifyCmd, adminCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}
