package binding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jestify/pkg/binding"
	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
)

func detect(t *testing.T, name, src string) (*binding.Binding, *jsast.Document, *jsast.Matcher) {
	t.Helper()

	doc, err := jsast.NewParser().Parse(context.Background(), "case.js", []byte(src))
	require.NoError(t, err)
	t.Cleanup(doc.Close)

	matcher, err := jsast.NewMatcher(doc.Language)
	require.NoError(t, err)

	b, err := binding.Detect(doc, dialect.MustNew(name), matcher)
	require.NoError(t, err)

	return b, doc, matcher
}

func TestDetect_ExpectForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		src       string
		local     string
		namespace string
		output    string
	}{
		{
			name:   "named import",
			src:    "import { expect } from 'chai';\nexpect(a);\n",
			local:  "expect",
			output: "expect(a);\n",
		},
		{
			name:   "aliased import",
			src:    "import { expect as e } from 'chai';\ne(a);\n",
			local:  "e",
			output: "e(a);\n",
		},
		{
			name:   "named import keeps siblings",
			src:    "import { assert, expect } from 'chai';\n",
			local:  "expect",
			output: "import { assert } from 'chai';\n",
		},
		{
			name:      "default plus named",
			src:       "import chai, {expect} from 'chai';\n",
			local:     "expect",
			namespace: "chai",
			output:    "import chai from 'chai';\n",
		},
		{
			name:   "require member",
			src:    "const expect = require('chai').expect;\nexpect(a);\n",
			local:  "expect",
			output: "expect(a);\n",
		},
		{
			name:   "destructured require",
			src:    "const {expect} = require(\"chai\");\n",
			local:  "expect",
			output: "",
		},
		{
			name:   "renamed destructuring keeps siblings",
			src:    "var { use, expect: chaiExpect } = require('chai');\n",
			local:  "chaiExpect",
			output: "var { use } = require('chai');\n",
		},
		{
			name:      "namespace then member",
			src:       "const chai = require('chai');\nconst expect = chai.expect;\nchai.use(x);\n",
			local:     "expect",
			namespace: "chai",
			output:    "const chai = require('chai');\nchai.use(x);\n",
		},
		{
			name:   "register entry",
			src:    "import 'chai/register-expect';\nexpect(a);\n",
			local:  "expect",
			output: "expect(a);\n",
		},
		{
			name:   "other library untouched",
			src:    "import { expect } from '@jest/globals';\n",
			local:  "expect",
			output: "import { expect } from '@jest/globals';\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, doc, _ := detect(t, dialect.Expect, tt.src)

			assert.Equal(t, tt.local, b.LocalName)
			assert.Equal(t, tt.namespace, b.Namespace)
			assert.Equal(t, tt.output, string(doc.Bytes()))
		})
	}
}

func TestDetect_ShouldForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		local  string
		output string
	}{
		{
			name:   "require install",
			src:    "require('chai').should();\nx.should.equal(1);\n",
			output: "x.should.equal(1);\n",
		},
		{
			name:   "bound should",
			src:    "const should = require('chai').should();\n",
			local:  "should",
			output: "",
		},
		{
			name:   "named import then call",
			src:    "import { should } from 'chai';\nshould();\nfoo();\n",
			local:  "should",
			output: "foo();\n",
		},
		{
			name:   "register entry",
			src:    "import 'chai/register-should';\n",
			local:  "should",
			output: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, doc, _ := detect(t, dialect.Should, tt.src)

			assert.True(t, b.Found)
			assert.Equal(t, tt.local, b.LocalName)
			assert.Equal(t, tt.output, string(doc.Bytes()))
		})
	}
}

func TestDetect_ImplicitShould(t *testing.T) {
	t.Parallel()

	b, doc, _ := detect(t, dialect.Should, "x.should.equal(1);\n")

	assert.False(t, b.Found)
	assert.True(t, b.Implicit)
	assert.Empty(t, b.LocalName)
	assert.False(t, doc.Edited())
}

func TestDetect_NothingToDo(t *testing.T) {
	t.Parallel()

	b, _, _ := detect(t, dialect.Should, "const a = 1;\n")

	assert.False(t, b.Found)
	assert.False(t, b.Implicit)
}

func TestFinalize_PrunesUnusedNamespace(t *testing.T) {
	t.Parallel()

	src := "const chai = require('chai');\nchai.expect(a).to.be.ok;\n"
	b, doc, matcher := detect(t, dialect.Expect, src)

	require.Equal(t, "chai", b.Namespace)

	// Simulate the rewrite of the only namespace reference.
	require.NoError(t, doc.ReplaceRange(30, 53, "expect(a).toBeTruthy()"))
	require.NoError(t, b.Finalize(doc, matcher))

	assert.Equal(t, "expect(a).toBeTruthy();\n", string(doc.Bytes()))
}

func TestFinalize_KeepsReferencedNamespace(t *testing.T) {
	t.Parallel()

	src := "import * as chai from 'chai';\nchai.use(plugin);\n"
	b, doc, matcher := detect(t, dialect.Expect, src)

	require.NoError(t, b.Finalize(doc, matcher))
	assert.Equal(t, src, string(doc.Bytes()))
}
