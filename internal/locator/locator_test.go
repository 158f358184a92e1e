package locator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateExact(t *testing.T) {
	doc := "Ana miró el horizonte. El sol se ponía tras las colinas."

	span, ok := Locate(doc, "El sol se ponía")
	require.True(t, ok)
	assert.Equal(t, "El sol se ponía", span.Text)
	assert.Equal(t, span.Text, doc[span.Start:span.End()])
}

func TestLocateNormalizedWhitespace(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		target string
	}{
		{
			name:   "document has a line break inside the phrase",
			doc:    "Ana caminaba despacio\npor la orilla del río mientras anochecía.",
			target: "caminaba despacio por la orilla",
		},
		{
			name:   "target has doubled spaces",
			doc:    "El viejo faro seguía encendido toda la noche.",
			target: "faro  seguía   encendido",
		},
		{
			name:   "tabs in the document",
			doc:    "Dijo:\t\"no pienso volver\" y cerró la puerta.",
			target: "Dijo: \"no pienso volver\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, ok := Locate(tt.doc, tt.target)
			require.True(t, ok)
			// The span must be a verbatim slice of the original document.
			assert.Equal(t, span.Text, tt.doc[span.Start:span.End()])
			// And it must not start or end on whitespace.
			assert.Equal(t, strings.TrimSpace(span.Text), span.Text)
		})
	}
}

func TestLocateKeywordsTier(t *testing.T) {
	doc := "Aquella madrugada, Marcos abandonó para siempre la ciudad encapotada, definitivamente resuelto a no volver."
	// Paraphrased target: exact and normalized tiers fail, keywords succeed.
	target := "abandonó la ciudad encapotada definitivamente"

	span, ok := Locate(doc, target)
	require.True(t, ok)
	assert.Contains(t, span.Text, "abandonó")
	assert.Contains(t, span.Text, "definitivamente")
	assert.Equal(t, span.Text, doc[span.Start:span.End()])
}

func TestLocateNotFound(t *testing.T) {
	doc := "Un párrafo breve sobre el mar."

	_, ok := Locate(doc, "la montaña nevada del norte profundo")
	assert.False(t, ok)
}

func TestLocateEmptyInputs(t *testing.T) {
	_, ok := Locate("", "algo")
	assert.False(t, ok)

	_, ok = Locate("algo", "   ")
	assert.False(t, ok)
}

func TestSplitSentences(t *testing.T) {
	text := "Ana llegó tarde. «¿Dónde estabas?» preguntó él. Ella no contestó"

	sentences := SplitSentences(text)
	require.Len(t, sentences, 3)
	assert.Equal(t, "Ana llegó tarde.", sentences[0].Text)
	assert.Equal(t, "Ella no contestó", sentences[2].Text)

	for _, s := range sentences {
		assert.Equal(t, s.Text, text[s.Start:s.Start+len(s.Text)])
	}
}

func TestSplitSentencesSwallowsClosingQuotes(t *testing.T) {
	text := `Dijo "se acabó." Y se fue.`

	sentences := SplitSentences(text)
	require.Len(t, sentences, 2)
	assert.Equal(t, `Dijo "se acabó."`, sentences[0].Text)
	assert.Equal(t, "Y se fue.", sentences[1].Text)
}

func TestSplitSentencesIgnoresDecimalPoints(t *testing.T) {
	text := "Midieron 3.5 metros de cuerda. Sobró la mitad."

	sentences := SplitSentences(text)
	require.Len(t, sentences, 2)
	assert.Equal(t, "Midieron 3.5 metros de cuerda.", sentences[0].Text)
}

func TestLongestWords(t *testing.T) {
	words := longestWords("el faro permanecía encendido toda la madrugada", 3)
	// The three longest words, back in appearance order.
	assert.Equal(t, []string{"permanecía", "encendido", "madrugada"}, words)
}

func TestFindAllOccurrences(t *testing.T) {
	doc := "El viento aullaba en la distancia. Pasaron horas. El viento aullaba en la distancia. Fin."

	spans := FindAllOccurrences(doc, "El viento aullaba en la distancia")
	require.Len(t, spans, 2)
	assert.Less(t, spans[0].Start, spans[1].Start)
	for _, s := range spans {
		assert.Equal(t, s.Text, doc[s.Start:s.End()])
	}
}

func TestFindAllOccurrencesNone(t *testing.T) {
	assert.Nil(t, FindAllOccurrences("texto corto", "frase totalmente ausente del documento"))
}

func TestIsGeneric(t *testing.T) {
	tests := []struct {
		name        string
		description string
		location    string
		want        bool
	}{
		{
			name:        "whole novel repetition",
			description: "La frase «el destino es caprichoso» se repite a lo largo de toda la novela",
			location:    "Toda la novela",
			want:        true,
		},
		{
			name:        "chapter-scoped issue is not generic",
			description: "Se repite la misma metáfora en varias ocasiones",
			location:    "Capítulo 7",
			want:        false,
		},
		{
			name:        "specific local issue",
			description: "El diálogo de Ana suena impostado",
			location:    "Capítulo 2, escena del puerto",
			want:        false,
		},
		{
			name:        "english throughout",
			description: "The phrase is repeated throughout the manuscript",
			location:    "",
			want:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGeneric(tt.description, tt.location))
		})
	}
}

func TestExtractQuotedPhrase(t *testing.T) {
	phrase, ok := ExtractQuotedPhrase("La frase «el destino es caprichoso» aparece doce veces")
	require.True(t, ok)
	assert.Equal(t, "el destino es caprichoso", phrase)

	_, ok = ExtractQuotedPhrase("Sin ninguna cita en el texto")
	assert.False(t, ok)

	// Too-short quotes (single words) are not usable search phrases.
	_, ok = ExtractQuotedPhrase(`La palabra "sol" se repite`)
	assert.False(t, ok)
}
