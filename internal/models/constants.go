package models

const (
	UnknownValue       = "Unknown"
	InsufficientAnswer = "Insufficient evidence in the document corpus"
	NotFoundAnswer     = "Answer not found in provided documents"
	SnippetLength      = 100

	MetaDocumentName = "document_name"
	MetaPage         = "page"
	MetaChunkID      = "chunk_id"
	MetaStartIndex   = "start_index"
	MetaSource       = "source"

	ContextSeparator = "\n"
)

var (
	SystemPromptTemplate = `You are a trustworthy AI assistant for a Question Answering system.
Your task is to answer the user's question explicitly based ONLY on the provided Context.

CRITICAL RULES:
1. Use ONLY the provided context chunks to answer.
2. If the answer is not in the context, state "` + NotFoundAnswer + `". Do NOT guess.
3. **MANDATORY**: Cite the source document and page number for EVERY claim or sentence you write.
   - Format: "...statement [Source: DocName, Page: X]."
4. Provide specific snippets from the context that support your answer using quotation marks.
5. Do not use any external knowledge.

Context:
%s
`

	ContextChunkTemplate = "--- Document: %s, Page: %s ---\nContent: %s\n"
)
