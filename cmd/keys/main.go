package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/SWAN-community/owid/internal/app"
	"github.com/SWAN-community/owid/internal/config"
	"github.com/SWAN-community/owid/internal/email"
	"github.com/SWAN-community/owid/internal/resolve"
	"github.com/SWAN-community/owid/internal/store"
)

func main() {
	var (
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env")
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (opcional)")
		cmdRegister    = flag.Bool("register", false, "da de alta un signer nuevo con su primer par de claves")
		cmdRotate      = flag.Bool("rotate", false, "agrega un par de claves nuevo al historial del dominio")
		cmdList        = flag.Bool("list", false, "lista los dominios hosteados")
		cmdShow        = flag.Bool("show", false, "muestra el historial de claves públicas del dominio")
		cmdGenMaster   = flag.Bool("gen-master", false, "genera una clave nueva para OWID_MASTER_KEY")
		flagDomain     = flag.String("domain", "", "dominio del signer")
		flagName       = flag.String("name", "", "nombre legible del signer")
		flagEmail      = flag.String("email", "", "contacto del signer")
		flagTerms      = flag.String("terms", "", "URL de términos del signer")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		_ = godotenv.Load(*flagEnvFile)
	}

	if *cmdGenMaster {
		generateMasterKey()
		return
	}

	cfg, err := config.Load(*flagConfigPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	var sc store.Config
	sc.Driver = cfg.Storage.Driver
	sc.DSN = cfg.Storage.DSN
	sc.File.Dir = cfg.Storage.File.Dir

	st, err := store.Open(ctx, sc)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	// Resolver y notifier no hacen falta para operaciones locales de claves.
	a := app.New(st, resolve.NewMemory(0), email.New(email.Config{}))

	switch {
	case *cmdRegister:
		requireDomain(*flagDomain)
		s, err := a.Register(ctx, *flagDomain, *flagName, *flagEmail, *flagTerms)
		if err != nil {
			log.Fatalf("register: %v", err)
		}
		fmt.Printf("Registered signer for %s with 1 key\n", s.Domain)
		fmt.Printf("Public key PEM:\n%s", s.PublicKeys[0].PEM)
	case *cmdRotate:
		requireDomain(*flagDomain)
		pub, keyID, err := a.Rotate(ctx, *flagDomain)
		if err != nil {
			log.Fatalf("rotate: %v", err)
		}
		fmt.Printf("Rotated. domain=%s key_id=%s created=%s\n", *flagDomain, keyID, pub.Created.Format("2006-01-02 15:04:05"))
	case *cmdList:
		domains, err := st.List(ctx)
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		for _, d := range domains {
			fmt.Println(d)
		}
	case *cmdShow:
		requireDomain(*flagDomain)
		s, err := st.Get(ctx, *flagDomain)
		if err != nil {
			log.Fatalf("show: %v", err)
		}
		fmt.Printf("domain=%s name=%q email=%q keys=%d\n", s.Domain, s.Name, s.Email, len(s.PublicKeys))
		for i, k := range s.PublicKeys {
			fmt.Printf("--- key %d created=%s\n%s", i, k.Created.Format("2006-01-02 15:04:05"), k.PEM)
		}
	default:
		fmt.Println("usage:")
		fmt.Println("  keys -register -domain example.test [-name ...] [-email ...] [-terms ...]")
		fmt.Println("  keys -rotate -domain example.test")
		fmt.Println("  keys -list")
		fmt.Println("  keys -show -domain example.test")
		fmt.Println("  keys -gen-master")
	}
}

func requireDomain(domain string) {
	if domain == "" {
		log.Fatal("falta -domain")
	}
}

func generateMasterKey() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		fmt.Printf("error generating key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated key: %s\n", base64.StdEncoding.EncodeToString(key))
	fmt.Println("\nAdd this to your .env file:")
	fmt.Printf("OWID_MASTER_KEY=%s\n", base64.StdEncoding.EncodeToString(key))
}
