package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/openmined/aclstore/internal/acl"
)

func printAcl(w io.Writer, record *acl.Acl) {
	fmt.Fprintf(w, "%s %s\n", cyan(record.Identity()), record.Owner())
	if !record.IsFullyLoaded() {
		fmt.Fprintf(w, "loaded for %v\n", record.LoadedSids())
	}

	entries := record.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(w, "no entries")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSID\tPERMISSION\tACCESS\tID")
	for i, ace := range entries {
		access := green("grant")
		if !ace.Granting {
			access = red("deny")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, ace.Sid, ace.Permission, access, ace.ID)
	}
	tw.Flush()
}
