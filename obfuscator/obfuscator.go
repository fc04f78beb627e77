// Package obfuscator wraps Lua source in a self-decoding loader.
//
// The payload is the source XORed with a single-byte key and Base64
// encoded. The loader template decodes it at runtime, so anyone holding
// the output can recover the source; it only deters casual copying.
package obfuscator

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"text/template"
	"unicode/utf16"
)

// DefaultKey is the XOR key used when none is configured.
const DefaultKey byte = 235

var ErrNoPayload = errors.New("obfuscator: no payload found")

type Obfuscator struct {
	key       byte
	charCodes bool
}

type Option func(*Obfuscator)

// WithCharCodes XORs UTF-16 code units and UTF-8 encodes the result
// before Base64. This matches payloads produced by the legacy Node
// service; the default byte mode is what the Lua loader decodes.
func WithCharCodes() Option {
	return func(o *Obfuscator) {
		o.charCodes = true
	}
}

func New(key byte, opts ...Option) *Obfuscator {
	o := &Obfuscator{key: key}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Obfuscator) Key() byte { return o.key }

// Obfuscate returns code wrapped in the loader template. It is
// deterministic and defined for every input.
func (o *Obfuscator) Obfuscate(code string) string {
	var buf bytes.Buffer

	// The template only interpolates a Base64 string and an integer.
	_ = wrapper.Execute(&buf, struct {
		Payload string
		Key     int
	}{
		Payload: o.Encode(code),
		Key:     int(o.key),
	})

	return buf.String()
}

// Encode returns the Base64 payload without the wrapper.
func (o *Obfuscator) Encode(code string) string {
	return base64.StdEncoding.EncodeToString([]byte(o.xor(code)))
}

// Decode reverses Encode.
func (o *Obfuscator) Decode(payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}

	return o.xor(string(raw)), nil
}

// Deobfuscate extracts the payload and key from wrapped output and
// returns the plain source.
func (o *Obfuscator) Deobfuscate(wrapped string) (string, error) {
	m := payloadPattern.FindStringSubmatch(wrapped)
	if m == nil {
		return "", ErrNoPayload
	}

	key, err := strconv.Atoi(m[2])
	if err != nil || key < 0 || key > 255 {
		return "", fmt.Errorf("obfuscator: invalid key %q", m[2])
	}

	inner := &Obfuscator{key: byte(key), charCodes: o.charCodes}

	return inner.Decode(m[1])
}

// xor is its own inverse in both modes.
func (o *Obfuscator) xor(s string) string {
	if o.charCodes {
		units := utf16.Encode([]rune(s))
		for i := range units {
			units[i] ^= uint16(o.key)
		}
		return string(utf16.Decode(units))
	}

	b := []byte(s)
	for i := range b {
		b[i] ^= o.key
	}
	return string(b)
}

var payloadPattern = regexp.MustCompile(`__xor\(__b64d\("([A-Za-z0-9+/=]*)"\),\s*(\d+)\)`)

var wrapper = template.Must(template.New("wrapper").Parse(wrapperTemplate))

// UXqHCrTc is never called; it is kept so the output matches existing
// loaders byte for byte.
const wrapperTemplate = `--[[This File was protects with LuaCrypt Pro]]
return(function(...)
    local __b='ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/'
    local function __b64d(d)
        local b,o='',{}
        d=d:gsub('[^'..__b..'=]','')
        for i=1,#d do
            local c=d:sub(i,i)
            if c=='='then break end
            local v=__b:find(c)-1
            for j=6,1,-1 do b=b..((v>>(j-1))&1)end
        end
        for i=1,#b,8 do
            local byte = b:sub(i,i+7)
            if #byte == 8 then
                o[#o+1]=string.char(tonumber(byte,2))
            end
        end
        return table.concat(o):gsub('%z+$', '')
    end
    local function __xor(s,k)
        local r=''
        for i=1,#s do r=r..string.char(string.byte(s,i)~k)end
        return r
    end
    local function UXqHCrTc() if debug and debug.getinfo then while true do end end end
    local function main()
        local _src = __xor(__b64d("{{.Payload}}"), {{.Key}})
        local _f, _e = loadstring(_src)
        if _f then return _f(...) else error(_e) end
    end
    local s,r = pcall(main)
    if not s then return end
    return r
end)(...)`
