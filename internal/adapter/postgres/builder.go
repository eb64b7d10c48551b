package postgres

import "github.com/Masterminds/squirrel"

// Builder builds squirrel statements with $n placeholders.
var Builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
