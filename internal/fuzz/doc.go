// Package fuzztests houses Go fuzz harnesses for the adalite front end and
// the environment engine (source -> lexer -> parser -> population -> lookup).
// They guard against panics and hangs on arbitrary inputs.
//
// Назначение: загрузить байты в FileSet, прогнать лексер и парсер, затем
// заселить окружения и разрешить все имена.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
//
// Зависимости: internal/source, internal/adalite, internal/diag,
// internal/engine, internal/testkit.
package fuzztests
