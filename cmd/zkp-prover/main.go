// zkp-prover is the proving toolchain the service shells out to. Keeping
// compilation, setup, proving, and verification in a separate binary bounds
// the memory-heavy gnark work to short-lived processes.
//
// Usage:
//
//	zkp-prover setup  -fields N -disclosed D -artifacts DIR
//	zkp-prover prove  -circuit NAME -artifacts DIR -input FILE -out DIR
//	zkp-prover verify -circuit NAME -artifacts DIR -proof FILE -public FILE
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/finproofs/receivable-zkp/internal/circuit"
	"github.com/finproofs/receivable-zkp/internal/prover"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "setup":
		err = runSetup(os.Args[2:])
	case "prove":
		err = runProve(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "zkp-prover %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: zkp-prover <setup|prove|verify> [flags]")
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	numFields := fs.Int("fields", 0, "number of private fields")
	numDisclosed := fs.Int("disclosed", 0, "number of disclosed fields")
	artifactsDir := fs.String("artifacts", "./artifacts", "artifact output directory")
	_ = fs.Parse(args)

	if *numFields < 1 || *numDisclosed < 1 || *numDisclosed > *numFields {
		return fmt.Errorf("invalid shape %dx%d", *numFields, *numDisclosed)
	}

	store := prover.NewStore(*artifactsDir)
	name, err := store.Setup(*numFields, *numDisclosed)
	if err != nil {
		return err
	}

	fmt.Printf("compiled %s into %s\n", name, *artifactsDir)
	return nil
}

func runProve(args []string) error {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	circuitName := fs.String("circuit", "", "circuit name")
	artifactsDir := fs.String("artifacts", "./artifacts", "artifact directory")
	inputPath := fs.String("input", "", "path to circuit input file")
	outDir := fs.String("out", ".", "output directory for proof.json and public.json")
	_ = fs.Parse(args)

	if *circuitName == "" || *inputPath == "" {
		return fmt.Errorf("-circuit and -input are required")
	}

	in, err := circuit.ReadInputFile(*inputPath)
	if err != nil {
		return err
	}
	if in.Circuit != *circuitName {
		return fmt.Errorf("input is for circuit %s, not %s", in.Circuit, *circuitName)
	}

	store := prover.NewStore(*artifactsDir)
	if !store.Exists(in.Circuit) {
		return fmt.Errorf("no compiled artifacts for %s in %s, run setup first", in.Circuit, *artifactsDir)
	}

	envelope, publicSignals, err := store.Prove(in)
	if err != nil {
		return err
	}

	proofPath, publicPath, err := prover.WriteProofFiles(*outDir, envelope, publicSignals)
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s and %s\n", proofPath, publicPath)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	artifactsDir := fs.String("artifacts", "./artifacts", "artifact directory")
	proofPath := fs.String("proof", "proof.json", "path to proof file")
	publicPath := fs.String("public", "public.json", "path to public signals file")
	_ = fs.Parse(args)

	envelope, publicSignals, err := prover.ReadProofFiles(*proofPath, *publicPath)
	if err != nil {
		return err
	}

	store := prover.NewStore(*artifactsDir)
	if err := store.Verify(envelope, publicSignals); err != nil {
		return err
	}

	fmt.Printf("proof for %s verified\n", envelope.Circuit)
	return nil
}
