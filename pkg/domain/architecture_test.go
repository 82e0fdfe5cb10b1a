package domain

import (
	"testing"

	"heredity/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImport, "domain must stay free of internal packages")
}
