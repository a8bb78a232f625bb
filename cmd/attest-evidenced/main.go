// attest-evidenced serves a local evidence store over gRPC so attestation
// builders and verifiers can share one content-addressed backend.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"skuldbot.io/attest/storage"
	"skuldbot.io/attest/storage/grpccas"
	"skuldbot.io/attest/storage/localfs"
)

func main() {
	fs := flag.NewFlagSet("attest-evidenced", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7791", "listen address")
	root := fs.String("root", "", "evidence store root directory (required)")
	mirror := fs.String("mirror", "", "optional second root; writes replicate to both")

	_ = fs.Parse(os.Args[1:])

	if *root == "" {
		fmt.Fprintln(os.Stderr, "attest-evidenced: -root is required")
		os.Exit(2)
	}

	primary, err := localfs.New(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var cas storage.CAS = primary
	if *mirror != "" {
		second, err := localfs.New(*mirror)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cas = storage.ReplicatingCAS{Backends: []storage.NamedCAS{
			{Name: "primary", CAS: primary},
			{Name: "mirror", CAS: second},
		}}
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpccas.RegisterEvidenceStoreServer(s, &grpccas.Server{CAS: cas})

	fmt.Fprintf(os.Stderr, "attest-evidenced listening on %s (root=%s)\n", lis.Addr().String(), *root)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
