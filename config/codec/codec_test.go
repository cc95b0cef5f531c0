// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build !integration

package codec

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CodecTestSuite struct {
	suite.Suite
}

func TestCodecTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(CodecTestSuite))
}

func (s *CodecTestSuite) TestRegistration() {
	for typ, want := range map[Type]any{
		TypeYAML:    YAMLCodec{},
		TypeTOML:    TOMLCodec{},
		TypeJSON:    JSONCodec{},
		TypeMsgPack: MsgPackCodec{},
		TypeEnvVar:  EnvVarCodec{},
	} {
		encoder, err := GetEncoder(typ)
		s.Require().NoError(err)
		s.IsType(want, encoder)

		decoder, err := GetDecoder(typ)
		s.Require().NoError(err)
		s.IsType(want, decoder)
	}

	s.Equal([]Type{TypeEnvVar, TypeJSON, TypeMsgPack, TypeTOML, TypeYAML}, Encoders())

	_, err := GetDecoder(Type("ini"))
	s.Error(err)
	_, err = GetEncoder(Type("ini"))
	s.Error(err)
}

func (s *CodecTestSuite) TestYAMLRoundTrip() {
	var out map[string]any
	s.Require().NoError(YAMLCodec{}.Decode([]byte("cache:\n  forward: 10\nexclude:\n  - /a\n"), &out))

	cache, ok := out["cache"].(map[string]any)
	s.Require().True(ok)
	s.EqualValues(10, cache["forward"])

	b, err := YAMLCodec{}.Encode(map[string]any{"default_url": true, "exclude": []string{"/a"}})
	s.Require().NoError(err)
	s.Contains(string(b), "default_url: true")
	s.Contains(string(b), "exclude:\n  - /a")
}

func (s *CodecTestSuite) TestTOML() {
	var out map[string]any
	s.Require().NoError(TOMLCodec{}.Decode([]byte("[cache]\nurl = 3\n"), &out))

	cache, ok := out["cache"].(map[string]any)
	s.Require().True(ok)
	s.EqualValues(3, cache["url"])

	s.Error(TOMLCodec{}.Decode([]byte("[cache"), &out))
}

func (s *CodecTestSuite) TestJSONEncodeIsIndented() {
	b, err := JSONCodec{}.Encode(map[string]any{"a": 1})
	s.Require().NoError(err)
	s.Equal("{\n  \"a\": 1\n}", string(b))
}

func (s *CodecTestSuite) TestMsgPackUsesJSONKeys() {
	type cache struct {
		Forward int `json:"forward"`
	}
	b, err := MsgPackCodec{}.Encode(struct {
		Cache   cache    `json:"cache"`
		Exclude []string `json:"exclude"`
	}{Cache: cache{Forward: 10}, Exclude: []string{"/a"}})
	s.Require().NoError(err)

	var out map[string]any
	s.Require().NoError(MsgPackCodec{}.Decode(b, &out))

	c, ok := out["cache"].(map[string]any)
	s.Require().True(ok)
	s.EqualValues(10, c["forward"])
	s.Equal([]any{"/a"}, out["exclude"])

	s.Error(MsgPackCodec{}.Decode([]byte{0xc1}, &out))
}

func (s *CodecTestSuite) TestEnvVarDecode() {
	data := []byte("CACHE__FORWARD=10\nCACHE__URL= 0 \nDEFAULT_URL=false\nnovalue\n=skipped\nEXCLUDE=/a/**,/b\n")

	var out map[string]any
	s.Require().NoError(EnvVarCodec{}.Decode(data, &out))

	s.Equal(map[string]any{
		"cache":       map[string]any{"forward": "10", "url": "0"},
		"default_url": "false",
		"exclude":     "/a/**,/b",
	}, out)
}

func (s *CodecTestSuite) TestEnvVarScalarReplacedByNesting() {
	var out map[string]any
	s.Require().NoError(EnvVarCodec{}.Decode([]byte("CACHE=1\nCACHE__URL=2\n"), &out))
	s.Equal(map[string]any{"cache": map[string]any{"url": "2"}}, out)
}

func (s *CodecTestSuite) TestEnvVarErrors() {
	var wrong map[string]string
	s.Error(EnvVarCodec{}.Decode([]byte("A=1"), &wrong))

	_, err := EnvVarCodec{}.Encode(map[string]any{})
	s.Error(err)
}
